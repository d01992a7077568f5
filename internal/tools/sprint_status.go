package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/corralhq/corral/internal/registry"
	"github.com/corralhq/corral/internal/sprint"
	"github.com/mark3labs/mcp-go/mcp"
)

// SprintStatusTool handles the corral_sprint_status MCP tool.
// It is a read-only snapshot of the whole registry.
type SprintStatusTool struct {
	store registry.Store
}

// NewSprintStatusTool creates a SprintStatusTool.
func NewSprintStatusTool(store registry.Store) *SprintStatusTool {
	return &SprintStatusTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *SprintStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_sprint_status",
		mcp.WithDescription(
			"Show the current workflow state: foundation, planning checklist, "+
				"active sprint, paused sprints and archive summary.",
		),
	)
}

// Handle processes the corral_sprint_status tool request.
func (t *SprintStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	reg, err := t.store.Snapshot(projectRoot)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"registry unavailable: %v. Run corral_recover to rebuild it.", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("# 🤠 Corral Status\n\n")

	sb.WriteString("## Foundation\n\n")
	if reg.Foundation.Complete {
		fmt.Fprintf(&sb, "✅ Complete · context `%s`\n", shortHash(reg.Foundation.ContextHash))
	} else {
		sb.WriteString("❌ Not initialized. Run `corral_foundation_init` first.\n")
	}

	sb.WriteString("\n## Planning Checklist\n\n")
	writeChecklist(&sb, reg.PlanningChecklist)

	sb.WriteString("\n## Active Sprint\n\n")
	if reg.ActiveSprint != nil {
		writeSprintSummary(&sb, reg.ActiveSprint)
	} else {
		sb.WriteString("None. Start one with `corral_sprint_start`.\n")
	}

	paused, terminal := splitHistory(reg.SprintHistory)
	if len(paused) > 0 {
		sb.WriteString("\n## Paused Sprints\n\n")
		for _, s := range paused {
			fmt.Fprintf(&sb, "- `%s` (paused in %s, iteration %d, scope: %s)\n",
				s.ID, s.PausedPhase, s.Iteration, strings.Join(s.LockedPaths, ", "))
		}
	}

	if len(terminal) > 0 {
		sb.WriteString("\n## Archive\n\n")
		for _, s := range terminal {
			fmt.Fprintf(&sb, "- `%s` (%s)\n", s.ID, s.Status)
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// writeChecklist renders the planning gates sorted by name.
func writeChecklist(sb *strings.Builder, checklist registry.PlanningChecklist) {
	names := make([]string, 0, len(checklist.Gates))
	for name := range checklist.Gates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		gate := checklist.Gates[name]
		marker := "⬜"
		switch gate.State {
		case sprint.GatePassed:
			marker = "✅"
		case sprint.GateFailed:
			marker = "❌"
		}
		fmt.Fprintf(sb, "- %s %s\n", marker, name)
	}
	if checklist.AllPassed() {
		sb.WriteString("\nAll gates passed. The manifesto can be locked.\n")
	}
}

// splitHistory separates paused sprints from terminal ones.
func splitHistory(history []sprint.Sprint) (paused, terminal []sprint.Sprint) {
	for _, s := range history {
		if s.Status == sprint.StatusPaused {
			paused = append(paused, s)
		} else {
			terminal = append(terminal, s)
		}
	}
	return paused, terminal
}
