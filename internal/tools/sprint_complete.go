package tools

import (
	"context"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintCompleteTool handles the corral_sprint_complete MCP tool.
type SprintCompleteTool struct {
	machine Machine
}

// NewSprintCompleteTool creates a SprintCompleteTool.
func NewSprintCompleteTool(machine Machine) *SprintCompleteTool {
	return &SprintCompleteTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintCompleteTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_complete",
		mcp.WithDescription(
			"Complete the active sprint. Only valid from the evaluation phase. "+
				"The sprint is archived to history and its scope is released.",
		),
		mcp.WithString("approval_token",
			mcp.Required(),
			mcp.Description("Human approval token, format 'complete:evaluation'"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_complete tool request.
func (t *SprintCompleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:        lifecycle.ActionComplete,
		ApprovalToken: req.GetString("approval_token", ""),
		RequestID:     req.GetString("request_id", ""),
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# ✅ Sprint Completed\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)
	sb.WriteString("\nThe sprint is archived and its scope is released. Start the next one with `corral_sprint_start`.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
