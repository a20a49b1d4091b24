package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	appdirectory "court-rotation/internal/app/directory"
	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/rotation"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	sessions  *appsession.Service
	directory *appdirectory.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(sessions *appsession.Service, directory *appdirectory.Service) *Server {
	mcpSrv := server.NewMCPServer(
		"court-rotation",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		sessions:   sessions,
		directory:  directory,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerSessionTools()
	s.registerCourtTools()
	s.registerRosterTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"session://{session_id}/view",
			"session_view",
			mcp.WithTemplateDescription("Courts, wait list and queued groups of the selected session"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "session://") || !strings.HasSuffix(raw, "/view") {
				return nil, nil
			}
			sessionID := strings.TrimSuffix(strings.TrimPrefix(raw, "session://"), "/view")
			eng, err := s.sessions.Engine(sessionID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(eng.View())
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// engine resolves the session_id argument to the selected engine.
func (s *Server) engine(request mcp.CallToolRequest) (*rotation.Engine, *mcp.CallToolResult) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return nil, toolError("invalid_request", err.Error())
	}
	eng, err := s.sessions.Engine(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, mapDomainError(err)
	}
	return eng, nil
}
