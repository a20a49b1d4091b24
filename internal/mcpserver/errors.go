package mcpserver

import (
	"errors"
	"fmt"

	appdirectory "court-rotation/internal/app/directory"
	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/rotation"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, appsession.ErrInvalidRequest), errors.Is(err, appdirectory.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, appdirectory.ErrInvalidLevel):
		return toolError("invalid_level", err.Error())
	case errors.Is(err, appsession.ErrSessionNotFound):
		return toolError("session_not_found", err.Error())
	default:
		_, code := rotation.MapError(err)
		return toolError(code, err.Error())
	}
}
