package mcpserver

import (
	"context"

	"court-rotation/internal/rotation"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCourtTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"assign_players",
			mcp.WithDescription("Put up to four players on a court; the first is captain. Lands on the court selecting players if there is one"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("court", mcp.Required(), mcp.Description("Court number, 1-12")),
			mcp.WithString("player_ids", mcp.Required(), mcp.Description("Comma separated player ids")),
		),
		s.handleAssignPlayers,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"unassign_court",
			mcp.WithDescription("Take every player off a court"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("court", mcp.Required(), mcp.Description("Court number, 1-12")),
		),
		s.handleUnassignCourt,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"swap_player",
			mcp.WithDescription("Replace one player on a court with a waiting player"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("court", mcp.Required(), mcp.Description("Court number, 1-12")),
			mcp.WithString("player_out", mcp.Required(), mcp.Description("Player leaving the court")),
			mcp.WithString("player_in", mcp.Required(), mcp.Description("Player joining the court")),
		),
		s.handleSwapPlayer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"set_court_state",
			mcp.WithDescription("Tag a court: Inactive|In-Progress|Confirm-Complete|Awaiting-Selection|Selecting-Players"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("court", mcp.Required(), mcp.Description("Court number, 1-12")),
			mcp.WithString("state", mcp.Required(), mcp.Description("Court state")),
		),
		s.handleSetCourtState,
	)
}

func (s *Server) handleAssignPlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	court, err := request.RequireFloat("court")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	raw, err := request.RequireString("player_ids")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := eng.Assign(ctx, int(court), splitIDs(raw)); err != nil {
		return mapDomainError(err), nil
	}
	return courtResult(eng, int(court))
}

func (s *Server) handleUnassignCourt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	court, err := request.RequireFloat("court")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := eng.Unassign(ctx, int(court)); err != nil {
		return mapDomainError(err), nil
	}
	return courtResult(eng, int(court))
}

func (s *Server) handleSwapPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	court, err := request.RequireFloat("court")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	out, err := request.RequireString("player_out")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	in, err := request.RequireString("player_in")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := eng.Swap(ctx, int(court), out, in); err != nil {
		return mapDomainError(err), nil
	}
	return courtResult(eng, int(court))
}

func (s *Server) handleSetCourtState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	court, err := request.RequireFloat("court")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	state, err := request.RequireString("state")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := eng.SetCourtState(int(court), rotation.CourtState(state)); err != nil {
		return mapDomainError(err), nil
	}
	return courtResult(eng, int(court))
}

func courtResult(eng *rotation.Engine, n int) (*mcp.CallToolResult, error) {
	court, err := eng.Court(n)
	if err != nil {
		// assignment may have been redirected to a court in select mode
		return toolResult(eng.View()), nil
	}
	return toolResult(court), nil
}
