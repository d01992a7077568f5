package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corralhq/corral/internal/hashengine"
	"github.com/corralhq/corral/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// FoundationInitTool handles the corral_foundation_init MCP tool.
// It digests the project's context sources and marks the foundation
// complete, which is the precondition for starting sprints.
type FoundationInitTool struct {
	store registry.Store
	// defaultSources are the project-relative context files digested
	// when the request does not name its own.
	defaultSources []string
}

// NewFoundationInitTool creates a FoundationInitTool.
func NewFoundationInitTool(store registry.Store, defaultSources []string) *FoundationInitTool {
	return &FoundationInitTool{store: store, defaultSources: defaultSources}
}

// Definition returns the MCP tool definition for registration.
func (t *FoundationInitTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_foundation_init",
		mcp.WithDescription(
			"Initialize the project foundation by digesting the context "+
				"source files into a global context hash. Sprints cannot be "+
				"started until the foundation is complete. Every named source "+
				"must exist and be readable.",
		),
		mcp.WithString("sources",
			mcp.Description("Comma-separated project-relative context files (default from project config)"),
		),
	)
}

// Handle processes the corral_foundation_init tool request.
func (t *FoundationInitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	sources := listArg(req, "sources")
	if len(sources) == 0 {
		sources = t.defaultSources
	}
	if len(sources) == 0 {
		return mcp.NewToolResultError("no context sources configured; pass 'sources' or set context_sources in .corral/config.yaml"), nil
	}

	hash, err := digestSources(projectRoot, sources)
	if err != nil {
		var stale *hashengine.StaleContextError
		if errors.As(err, &stale) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"context source %q is unreadable: create it before initializing the foundation", stale.Path)), nil
		}
		return nil, fmt.Errorf("digesting context sources: %w", err)
	}

	_, err = t.store.Mutate(projectRoot, func(reg *registry.Registry) error {
		reg.Foundation = registry.Foundation{Complete: true, ContextHash: hash}
		reg.GlobalContext = registry.GlobalContext{
			Hash:        hash,
			SourceFiles: sources,
			LastUpdated: time.Now().UTC().Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving foundation: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# 🏗️ Foundation Initialized\n\n")
	fmt.Fprintf(&sb, "**Context hash:** `%s`\n", shortHash(hash))
	fmt.Fprintf(&sb, "**Sources:** %s\n", strings.Join(sources, ", "))
	sb.WriteString("\nStart a sprint with `corral_sprint_start`.\n")

	return mcp.NewToolResultText(sb.String()), nil
}
