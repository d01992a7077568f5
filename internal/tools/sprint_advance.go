package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintAdvanceTool handles the corral_sprint_advance MCP tool.
// In execution it advances iterations (or moves to testing with
// phase_complete); in testing it moves to evaluation.
type SprintAdvanceTool struct {
	machine Machine
}

// NewSprintAdvanceTool creates a SprintAdvanceTool.
func NewSprintAdvanceTool(machine Machine) *SprintAdvanceTool {
	return &SprintAdvanceTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintAdvanceTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_advance",
		mcp.WithDescription(
			"Advance the active sprint. During execution each call is one "+
				"iteration; checkpoints 10, 25, 40 and 60 prompt a progress "+
				"assessment, and the iteration budget rejects further advances "+
				"unless an override token is supplied. Pass phase_complete=true "+
				"to move execution to testing, and call again from testing to "+
				"reach evaluation.",
		),
		mcp.WithString("approval_token",
			mcp.Required(),
			mcp.Description("Human approval token, format 'advance:<current-phase>'"),
		),
		mcp.WithBoolean("phase_complete",
			mcp.Description("Set true when execution work is done to move into testing"),
		),
		mcp.WithNumber("completion_rate",
			mcp.Description("Estimated completion fraction (0.0-1.0), reported back at assessment checkpoints"),
		),
		mcp.WithString("override_token",
			mcp.Description("Token 'override:iteration-limit' to advance past the iteration budget"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key for safe retries"),
		),
	)
}

// Handle processes the corral_sprint_advance tool request.
func (t *SprintAdvanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]any{}
	if boolArg(req, "phase_complete", false) {
		payload["phase_complete"] = true
	}
	if rate := floatArg(req, "completion_rate", 0); rate > 0 {
		payload["completion_rate"] = rate
	}
	if token := req.GetString("override_token", ""); token != "" {
		payload["override_token"] = token
	}

	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:        lifecycle.ActionAdvance,
		ApprovalToken: req.GetString("approval_token", ""),
		RequestID:     req.GetString("request_id", ""),
		Payload:       payload,
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# ▶️ Sprint Advanced\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)

	if resp.Assessment != nil {
		sb.WriteString("\n## ⚠️ Assessment Required\n\n")
		fmt.Fprintf(&sb, "Checkpoint reached at iteration **%d**.\n", resp.Assessment.Iteration)
		fmt.Fprintf(&sb, "Reported completion rate: **%.0f%%**\n\n", resp.Assessment.CompletionRate*100)
		sb.WriteString("Review progress against the plan before continuing. If the sprint\n")
		sb.WriteString("is off track, consider `corral_sprint_pause` or `corral_sprint_abandon`.\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
