package tools

import (
	"context"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintResumeTool handles the corral_sprint_resume MCP tool.
type SprintResumeTool struct {
	machine Machine
}

// NewSprintResumeTool creates a SprintResumeTool.
func NewSprintResumeTool(machine Machine) *SprintResumeTool {
	return &SprintResumeTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintResumeTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_resume",
		mcp.WithDescription(
			"Resume a paused sprint at the phase and iteration it was paused "+
				"in. Requires no other active sprint. If more than one sprint "+
				"is paused, sprint_id selects which to resume.",
		),
		mcp.WithString("sprint_id",
			mcp.Description("ID of the paused sprint to resume (optional when only one is paused)"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_resume tool request.
func (t *SprintResumeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:    lifecycle.ActionResume,
		SprintID:  req.GetString("sprint_id", ""),
		RequestID: req.GetString("request_id", ""),
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# ⏯️ Sprint Resumed\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)

	return mcp.NewToolResultText(sb.String()), nil
}
