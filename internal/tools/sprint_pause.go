package tools

import (
	"context"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintPauseTool handles the corral_sprint_pause MCP tool.
type SprintPauseTool struct {
	machine Machine
}

// NewSprintPauseTool creates a SprintPauseTool.
func NewSprintPauseTool(machine Machine) *SprintPauseTool {
	return &SprintPauseTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintPauseTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_pause",
		mcp.WithDescription(
			"Pause the active sprint, preserving its phase and iteration count. "+
				"A paused sprint keeps ownership of its locked scope; resume it "+
				"later with corral_sprint_resume. Sprints still in planning "+
				"cannot be paused.",
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_pause tool request.
func (t *SprintPauseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:    lifecycle.ActionPause,
		RequestID: req.GetString("request_id", ""),
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# ⏸️ Sprint Paused\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)
	sb.WriteString("\nThe sprint keeps its locked scope while paused. Resume with `corral_sprint_resume`.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
