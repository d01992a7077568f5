// Package resources implements MCP resource handlers for the Corral
// workflow orchestrator.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (corral://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corralhq/corral/internal/registry"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handler manages Corral resource endpoints.
type Handler struct {
	store registry.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store registry.Store) *Handler {
	return &Handler{store: store}
}

// StatusResource returns the MCP resource definition for project status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"corral://project/status",
		"Corral Workflow Status",
		mcp.WithResourceDescription("Current registry state: foundation, checklist, sprints"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current registry snapshot as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	projectRoot, err := findRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	reg, err := h.store.Snapshot(projectRoot)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource wraps an error message as a JSON resource payload so
// hosts that cannot surface resource errors still see something useful.
func errorResource(uri, msg string) []mcp.ResourceContents {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}
}
