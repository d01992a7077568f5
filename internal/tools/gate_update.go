package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/corralhq/corral/internal/registry"
	"github.com/corralhq/corral/internal/sprint"
	"github.com/mark3labs/mcp-go/mcp"
)

// GateUpdateTool handles the corral_gate_update MCP tool.
// It records a planning-checklist gate result.
type GateUpdateTool struct {
	store registry.Store
}

// NewGateUpdateTool creates a GateUpdateTool.
func NewGateUpdateTool(store registry.Store) *GateUpdateTool {
	return &GateUpdateTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *GateUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_gate_update",
		mcp.WithDescription(
			"Record a planning-checklist gate result. Every gate must pass "+
				"before a sprint manifesto can be locked. Unknown gate names "+
				"extend the checklist.",
		),
		mcp.WithString("gate",
			mcp.Required(),
			mcp.Description("Gate name (e.g. objectives_defined, risk_assessment)"),
		),
		mcp.WithString("state",
			mcp.Required(),
			mcp.Description("Gate state: pending, passed or failed"),
		),
	)
}

// Handle processes the corral_gate_update tool request.
func (t *GateUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gate := req.GetString("gate", "")
	if gate == "" {
		return mcp.NewToolResultError("gate is required"), nil
	}
	state := sprint.GateState(req.GetString("state", ""))

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	reg, err := t.store.Mutate(projectRoot, func(reg *registry.Registry) error {
		return reg.PlanningChecklist.SetGate(gate, state, time.Now())
	})
	if err != nil {
		if verr := sprint.ValidateGateState(state); verr != nil {
			return mcp.NewToolResultError(verr.Error()), nil
		}
		return nil, fmt.Errorf("updating gate: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Gate Updated: %s → %s\n\n", gate, state)
	writeChecklist(&sb, reg.PlanningChecklist)

	if incomplete := reg.PlanningChecklist.Incomplete(); len(incomplete) > 0 {
		sort.Strings(incomplete)
		fmt.Fprintf(&sb, "\n%d gate(s) still incomplete: %s\n",
			len(incomplete), strings.Join(incomplete, ", "))
	}

	return mcp.NewToolResultText(sb.String()), nil
}
