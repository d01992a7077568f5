package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/corralhq/corral/internal/audit"
	"github.com/corralhq/corral/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// RecoverTool handles the corral_recover MCP tool.
// It rebuilds the registry from whatever survives on disk: the registry
// file itself, archived sprint records and context sources. Recovery
// never fails; it degrades to a minimal fresh state.
type RecoverTool struct {
	store          registry.Store
	contextSources []string
	auditStore     *audit.Store
}

// NewRecoverTool creates a RecoverTool. auditStore may be nil.
func NewRecoverTool(store registry.Store, contextSources []string, auditStore *audit.Store) *RecoverTool {
	return &RecoverTool{store: store, contextSources: contextSources, auditStore: auditStore}
}

// Definition returns the MCP tool definition for registration.
func (t *RecoverTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_recover",
		mcp.WithDescription(
			"Rebuild the workflow registry after corruption or loss. "+
				"Reconstructs what it can from archived sprints and context "+
				"sources and reports the confidence level: full (registry "+
				"intact), partial (some state rebuilt) or minimal (fresh "+
				"start). Set persist=false for a dry run.",
		),
		mcp.WithBoolean("persist",
			mcp.Description("Write the reconstructed registry to disk (default true)"),
		),
	)
}

// Handle processes the corral_recover tool request.
func (t *RecoverTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	result := registry.NewReconstructor(t.store, t.contextSources).Reconstruct(projectRoot)

	persisted := false
	if boolArg(req, "persist", true) && result.Confidence != registry.RecoveryFull {
		if err := t.store.Save(projectRoot, result.Registry); err != nil {
			return nil, fmt.Errorf("persisting recovered registry: %w", err)
		}
		persisted = true
	}

	t.logRecovery(result, persisted)

	var sb strings.Builder
	sb.WriteString("# 🩹 Registry Recovery\n\n")
	fmt.Fprintf(&sb, "**Confidence:** %s\n", result.Confidence)
	if persisted {
		sb.WriteString("**Persisted:** yes\n")
	} else {
		sb.WriteString("**Persisted:** no\n")
	}

	if len(result.Missing) > 0 {
		sb.WriteString("\n## Unrecoverable\n\n")
		for _, m := range result.Missing {
			fmt.Fprintf(&sb, "- %s\n", m)
		}
	}

	reg := result.Registry
	fmt.Fprintf(&sb, "\nFoundation complete: %v · archived sprints: %d\n",
		reg.Foundation.Complete, len(reg.SprintHistory))
	if !reg.Foundation.Complete {
		sb.WriteString("\nRe-run `corral_foundation_init` to restore the foundation.\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// logRecovery records the recovery in the audit trail. Best effort.
func (t *RecoverTool) logRecovery(result registry.Result, persisted bool) {
	if t.auditStore == nil {
		return
	}
	_, err := t.auditStore.Log(audit.Event{
		Kind:     audit.KindRecovery,
		Decision: string(result.Confidence),
		Reason:   fmt.Sprintf("missing: %s; persisted: %v", strings.Join(result.Missing, ","), persisted),
	})
	if err != nil {
		log.Printf("WARNING: audit log recovery event: %v", err)
	}
}
