package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes a callable tool
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

var emptySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

var windowSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"window_days": map[string]any{
			"type":        "integer",
			"description": "Days of history to include (omit or 0 for the server default, negative for all history)",
		},
	},
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Tracking
		{
			Name:        "start_session",
			Description: "Start a study session. A session already in progress is ended first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"activity_type": map[string]any{
						"type":        "string",
						"description": "Session category label (defaults to general)",
					},
				},
			},
		},
		{
			Name:        "record_activity",
			Description: "Record a study activity in the current session. Ends an open break.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": map[string]any{
						"type":        "string",
						"enum":        []string{"note_created", "file_uploaded", "ai_query", "content_viewed"},
						"description": "Activity kind",
					},
					"data": map[string]any{
						"type":        "object",
						"description": "Free-form payload, e.g. {\"wordCount\": 120, \"tags\": [\"math\"]} for notes or {\"category\": \"math\"}",
					},
				},
				"required": []string{"type"},
			},
		},
		{
			Name:        "pause_session",
			Description: "Open a manual break in the current session",
			InputSchema: emptySchema,
		},
		{
			Name:        "resume_session",
			Description: "Close the open break in the current session",
			InputSchema: emptySchema,
		},
		{
			Name:        "end_session",
			Description: "End the current session and queue it for sync",
			InputSchema: emptySchema,
		},
		{
			Name:        "get_current_session",
			Description: "Get the state of the current session with live totals and productivity score",
			InputSchema: emptySchema,
		},

		// History and analytics
		{
			Name:        "list_sessions",
			Description: "List recent sessions, oldest first",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"since_days": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"description": "Only sessions started in the last N days",
					},
					"limit": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"description": "Keep only the N most recent sessions",
					},
				},
			},
		},
		{
			Name:        "get_analytics",
			Description: "Get study minutes and session counts grouped by day, ISO week and month",
			InputSchema: windowSchema,
		},
		{
			Name:        "get_streaks",
			Description: "Get the current and longest daily study streaks",
			InputSchema: emptySchema,
		},
		{
			Name:        "get_insights",
			Description: "Get best study hour and weekday, average session length and top knowledge areas",
			InputSchema: windowSchema,
		},
		{
			Name:        "get_report",
			Description: "Get aggregates, streaks, insights and average productivity in one call",
			InputSchema: windowSchema,
		},
	}
}

// registerTools adds every catalog tool to the server, routing calls
// through the handler.
func registerTools(server *sdkmcp.Server, h *Handler, logger *slog.Logger) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := h.Handle(ctx, getUserID(ctx), name, args)
			if err != nil {
				logger.Debug("tool call failed", "tool", name, "error", err)
				return errorResult(err), nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				return errorResult(err), nil
			}
			return &sdkmcp.CallToolResult{
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
			}, nil
		})
	}
}

func errorResult(err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	if apiErr == nil {
		apiErr = &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
