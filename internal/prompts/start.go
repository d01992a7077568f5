// Package prompts implements MCP prompt handlers for the Corral
// workflow orchestrator.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the corral-start MCP prompt.
// It guides the AI through foundation setup and the first sprint.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("corral-start",
		mcp.WithPromptDescription(
			"Start working under Corral's sprint discipline. "+
				"Guides you through initializing the project foundation, "+
				"planning your first sprint and locking its manifesto.",
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What you want the first sprint to achieve"),
		),
	)
}

// Handle processes the corral-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	goal := "my first sprint"
	if args := req.Params.Arguments; args != nil {
		if g, ok := args["goal"]; ok && g != "" {
			goal = g
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Start Corral sprint: %s", goal),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to start disciplined sprint work on: %s\n\n"+
						"Please:\n"+
						"1. Run `corral_sprint_status` to see the current state\n"+
						"2. If the foundation is not initialized, run `corral_foundation_init` (ask me which context files describe this project)\n"+
						"3. Run `corral_sprint_start` with a description of the goal and the file paths the work will touch\n"+
						"4. Work through the planning checklist with `corral_gate_update`, asking me to confirm each gate\n"+
						"5. When every gate passes, ask for my approval and lock the manifesto with `corral_sprint_lock`\n"+
						"6. During execution, check every file write with `corral_boundary_check` and advance iterations with `corral_sprint_advance`",
					goal,
				)),
			},
		},
	}, nil
}
