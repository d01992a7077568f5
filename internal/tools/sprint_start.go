package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/lifecycle"
	"github.com/mark3labs/mcp-go/mcp"
)

// Machine is the transition surface the sprint tools depend on.
// Satisfied by *lifecycle.Machine.
type Machine interface {
	Apply(projectRoot string, req lifecycle.Request) (lifecycle.Response, error)
}

// runTransition applies a lifecycle request and maps a rejection to an
// MCP error result. The boolean reports whether the transition was
// accepted; on false the returned result is ready to hand back.
func runTransition(m Machine, req lifecycle.Request) (lifecycle.Response, *mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return lifecycle.Response{}, nil, err
	}

	resp, err := m.Apply(projectRoot, req)
	if err != nil {
		return resp, nil, fmt.Errorf("applying %s: %w", req.Action, err)
	}
	if resp.Status == lifecycle.StatusRejected {
		return resp, mcp.NewToolResultError(resp.Reason), nil
	}
	return resp, nil, nil
}

// SprintStartTool handles the corral_sprint_start MCP tool.
// It creates a new sprint in the planning phase.
type SprintStartTool struct {
	machine Machine
}

// NewSprintStartTool creates a SprintStartTool.
func NewSprintStartTool(machine Machine) *SprintStartTool {
	return &SprintStartTool{machine: machine}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintStartTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_start",
		mcp.WithDescription(
			"Start a new sprint in the planning phase. Requires a completed "+
				"foundation and no other active sprint. Declare the file paths "+
				"and external resources the sprint will touch — they become the "+
				"locked scope once the manifesto is locked.",
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Short description of the sprint's goal (becomes part of its ID)"),
		),
		mcp.WithString("locked_paths",
			mcp.Description("Comma-separated file paths or glob patterns the sprint will modify (e.g. 'src/auth/*, docs/auth.md')"),
		),
		mcp.WithString("resources",
			mcp.Description("Comma-separated external resources the sprint will touch (e.g. 'users-db, billing-api')"),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Iteration budget for the execution phase (default from project config)"),
		),
		mcp.WithString("request_id",
			mcp.Description("Idempotency key. Re-sending the same ID replays the recorded outcome instead of repeating the transition."),
		),
	)
}

// Handle processes the corral_sprint_start tool request.
func (t *SprintStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description := req.GetString("description", "")
	if description == "" {
		return mcp.NewToolResultError("description is required"), nil
	}

	payload := map[string]any{
		"description": description,
	}
	if paths := listArg(req, "locked_paths"); len(paths) > 0 {
		payload["locked_paths"] = paths
	}
	if resources := listArg(req, "resources"); len(resources) > 0 {
		payload["resources"] = resources
	}
	if maxIter := intArg(req, "max_iterations", 0); maxIter > 0 {
		payload["max_iterations"] = maxIter
	}

	resp, errResult, err := runTransition(t.machine, lifecycle.Request{
		Action:    lifecycle.ActionCreate,
		RequestID: req.GetString("request_id", ""),
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	if errResult != nil {
		return errResult, nil
	}

	var sb strings.Builder
	sb.WriteString("# 🏇 Sprint Started\n\n")
	if resp.Replayed {
		sb.WriteString("*(replayed a previously applied request)*\n\n")
	}
	writeSprintSummary(&sb, resp.Sprint)
	sb.WriteString("\n## Next Steps\n\n")
	sb.WriteString("1. Work the planning checklist with `corral_gate_update` until every gate passes\n")
	sb.WriteString("2. Lock the manifesto with `corral_sprint_lock` (approval token `lock-manifesto:planning`)\n")

	return mcp.NewToolResultText(sb.String()), nil
}
