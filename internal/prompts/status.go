package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the corral-status MCP prompt.
// It instructs the AI to read and present the current workflow state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("corral-status",
		mcp.WithPromptDescription(
			"Check the current Corral workflow state: foundation, "+
				"planning checklist, active and paused sprints, and what "+
				"to do next.",
		),
	)
}

// Handle processes the corral-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Corral Workflow Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `corral_sprint_status` to check the workflow state.\n\n" +
						"Then:\n" +
						"1. Show me the state in a clear, visual format\n" +
						"2. Run `corral_context_check` and flag any context drift\n" +
						"3. Highlight blockers: pending gates, iteration budget pressure, paused sprints holding scope\n" +
						"4. Tell me exactly what I should do next",
				),
			},
		},
	}, nil
}
