package mcpserver

import (
	"context"

	"court-rotation/internal/rotation"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRosterTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"queue_players",
			mcp.WithDescription("Queue players together as the next group, or dequeue them"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("player_ids", mcp.Required(), mcp.Description("Comma separated player ids")),
			mcp.WithBoolean("enqueue", mcp.Description("false to dequeue, default true")),
		),
		s.handleQueuePlayers,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"set_attendance",
			mcp.WithDescription("Mark players present or absent for the session"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("player_ids", mcp.Required(), mcp.Description("Comma separated player ids")),
			mcp.WithBoolean("attending", mcp.Description("false to mark absent, default true")),
		),
		s.handleSetAttendance,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"toggle_pause",
			mcp.WithDescription("Pause or unpause a player so they are skipped for selection"),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("player_id", mcp.Required(), mcp.Description("Player id")),
		),
		s.handleTogglePause,
	)
}

func (s *Server) handleQueuePlayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	raw, err := request.RequireString("player_ids")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := eng.CommitQueue(ctx, splitIDs(raw), request.GetBool("enqueue", true)); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"queued_groups": eng.QueuedGroups()}), nil
}

func (s *Server) handleSetAttendance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	raw, err := request.RequireString("player_ids")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	attending := request.GetBool("attending", true)
	ids := splitIDs(raw)
	updates := make([]rotation.AttendanceUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, rotation.AttendanceUpdate{PlayerID: id, Attending: attending})
	}
	if err := eng.CommitAttendance(ctx, updates); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"updated": len(updates)}), nil
}

func (s *Server) handleTogglePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eng, errRes := s.engine(request)
	if errRes != nil {
		return errRes, nil
	}
	playerID, err := request.RequireString("player_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	paused, err := eng.TogglePaused(ctx, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"player_id": playerID, "paused": paused}), nil
}
