package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerSessionTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"select_session",
			mcp.WithDescription("Select a session, loading its court layout, rosters and wait list"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleSelectSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session_view",
			mcp.WithDescription("Courts, active courts, wait list, candidates and queued groups of the selected session"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetSessionView,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_directory",
			mcp.WithDescription("List every player in the directory"),
		),
		s.handleListDirectory,
	)
}

func (s *Server) handleSelectSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	eng, err := s.sessions.Select(ctx, sessionID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(eng.View()), nil
}

func (s *Server) handleGetSessionView(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	return toolResult(eng.View()), nil
}

func (s *Server) handleListDirectory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.directory.Players(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
