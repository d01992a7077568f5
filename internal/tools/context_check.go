package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/hashengine"
	"github.com/corralhq/corral/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// ContextCheckTool handles the corral_context_check MCP tool.
// It recomputes the context digest and compares it with the hash
// recorded at foundation time, flagging drift before planning continues
// on stale assumptions.
type ContextCheckTool struct {
	store registry.Store
}

// NewContextCheckTool creates a ContextCheckTool.
func NewContextCheckTool(store registry.Store) *ContextCheckTool {
	return &ContextCheckTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *ContextCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_context_check",
		mcp.WithDescription(
			"Verify that the project's context source files still match the "+
				"global context hash. A mismatch means planning context has "+
				"drifted since the foundation was initialized; re-run "+
				"corral_foundation_init to accept the new state.",
		),
	)
}

// Handle processes the corral_context_check tool request.
func (t *ContextCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	reg, err := t.store.Snapshot(projectRoot)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("registry unavailable: %v", err)), nil
	}
	if reg.GlobalContext.Hash == "" {
		return mcp.NewToolResultError("no global context recorded; run corral_foundation_init first"), nil
	}

	current, err := digestSources(projectRoot, reg.GlobalContext.SourceFiles)
	if err != nil {
		var stale *hashengine.StaleContextError
		if errors.As(err, &stale) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"⚠️ STALE CONTEXT: source %q can no longer be read. "+
					"The recorded context is unverifiable; re-run corral_foundation_init.", stale.Path)), nil
		}
		return nil, fmt.Errorf("digesting context sources: %w", err)
	}

	var sb strings.Builder
	if hashengine.Compare(current, reg.GlobalContext.Hash) == hashengine.Equal {
		sb.WriteString("# ✅ Context Fresh\n\n")
		fmt.Fprintf(&sb, "All %d context source(s) match hash `%s`.\n",
			len(reg.GlobalContext.SourceFiles), shortHash(current))
		if s := reg.ActiveSprint; s != nil && s.ContextHashAtCreation != "" && s.ContextHashAtCreation != current {
			fmt.Fprintf(&sb, "\n⚠️ The active sprint `%s` was created against an older context (`%s`). "+
				"Review whether its plan still holds.\n", s.ID, shortHash(s.ContextHashAtCreation))
		}
	} else {
		sb.WriteString("# ⚠️ Context Drift Detected\n\n")
		fmt.Fprintf(&sb, "**Recorded:** `%s`\n", shortHash(reg.GlobalContext.Hash))
		fmt.Fprintf(&sb, "**Current:**  `%s`\n\n", shortHash(current))
		sb.WriteString("Context sources changed since the foundation was initialized.\n")
		sb.WriteString("Review the changes, then re-run `corral_foundation_init` to accept them.\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
