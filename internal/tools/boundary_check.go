package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/boundary"
	"github.com/corralhq/corral/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// BoundaryCheckTool handles the corral_boundary_check MCP tool.
// It asks the guard whether a file operation falls inside the active
// sprint's locked scope. The guard fails closed: anything it cannot
// prove allowed is denied.
type BoundaryCheckTool struct {
	store registry.Store
	guard *boundary.Guard
}

// NewBoundaryCheckTool creates a BoundaryCheckTool.
func NewBoundaryCheckTool(store registry.Store, guard *boundary.Guard) *BoundaryCheckTool {
	return &BoundaryCheckTool{store: store, guard: guard}
}

// Definition returns the MCP tool definition for registration.
func (t *BoundaryCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_boundary_check",
		mcp.WithDescription(
			"Check whether a file operation is allowed under the active "+
				"sprint's locked scope. Reads are always allowed; writes and "+
				"deletes require an executing sprint whose manifesto covers "+
				"the path. Call this before modifying any file.",
		),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Operation kind: read, write or delete"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Project-relative file path"),
		),
	)
}

// Handle processes the corral_boundary_check tool request.
func (t *BoundaryCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op := boundary.Operation{
		Kind: boundary.Kind(req.GetString("operation", "")),
		Path: req.GetString("path", ""),
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	reg, err := t.store.Snapshot(projectRoot)
	if err != nil {
		// Fail closed: with no readable registry, only reads pass.
		reg = registry.New()
	}

	decision := t.guard.Authorize(op, reg.ActiveSprint)

	var sb strings.Builder
	if decision.Allowed {
		sb.WriteString("# ✅ Allowed\n\n")
		fmt.Fprintf(&sb, "`%s %s`\n\n%s", op.Kind, op.Path, decision.Reason)
		if decision.Pattern != "" {
			fmt.Fprintf(&sb, " (pattern `%s`)", decision.Pattern)
		}
		sb.WriteString("\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	return mcp.NewToolResultError(fmt.Sprintf(
		"DENIED: %s %s — %s", op.Kind, op.Path, decision.Reason)), nil
}
