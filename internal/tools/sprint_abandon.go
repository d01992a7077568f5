package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintAbandonTool handles the corral_sprint_abandon MCP tool.
type SprintAbandonTool struct {
	machine Machine
}

// NewSprintAbandonTool creates a SprintAbandonTool.
func NewSprintAbandonTool(machine Machine) *SprintAbandonTool {
	return &SprintAbandonTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintAbandonTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_abandon",
		mcp.WithDescription(
			"Abandon the active sprint from any phase. A reason is required "+
				"and recorded with the archived sprint.",
		),
		mcp.WithString("reason",
			mcp.Required(),
			mcp.Description("Why the sprint is being abandoned"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_abandon tool request.
func (t *SprintAbandonTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reason := req.GetString("reason", "")
	if reason == "" {
		return mcp.NewToolResultError("reason is required"), nil
	}

	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:    lifecycle.ActionAbandon,
		RequestID: req.GetString("request_id", ""),
		Payload:   map[string]any{"reason": reason},
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# 🛑 Sprint Abandoned\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)
	fmt.Fprintf(&sb, "\n**Reason:** %s\n", reason)
	sb.WriteString("\nThe sprint is archived and its scope is released.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
