package tools

import (
	"context"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintLockTool handles the corral_sprint_lock MCP tool.
// It locks the active sprint's manifesto and moves it into execution.
type SprintLockTool struct {
	machine Machine
}

// NewSprintLockTool creates a SprintLockTool.
func NewSprintLockTool(machine Machine) *SprintLockTool {
	return &SprintLockTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintLockTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_lock",
		mcp.WithDescription(
			"Lock the active sprint's manifesto. Requires every planning gate "+
				"to have passed, a non-empty locked scope, and no sequential "+
				"conflict with paused sprints. After locking, the scope is "+
				"immutable and writes outside it are denied.",
		),
		mcp.WithString("approval_token",
			mcp.Required(),
			mcp.Description("Human approval token, format 'lock-manifesto:planning'"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_lock tool request.
func (t *SprintLockTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:        lifecycle.ActionLockManifesto,
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
	sb.WriteString("# 🔒 Manifesto Locked\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)
	sb.WriteString("\n## Next Steps\n\n")
	sb.WriteString("The sprint is in **execution**. Writes are now confined to the locked scope.\n")
	sb.WriteString("Advance iterations with `corral_sprint_advance` (token `advance:execution`);\n")
	sb.WriteString("pass `phase_complete=true` when execution work is done.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
