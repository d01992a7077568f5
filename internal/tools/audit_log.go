package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/corralhq/corral/internal/audit"
	"github.com/mark3labs/mcp-go/mcp"
)

// AuditLogTool handles the corral_audit_log MCP tool.
// It reads the decision trail: lifecycle transitions, boundary denials
// and registry recoveries.
type AuditLogTool struct {
	store *audit.Store
}

// NewAuditLogTool creates an AuditLogTool. store may be nil when the
// audit subsystem failed to initialize; the tool then reports that.
func NewAuditLogTool(store *audit.Store) *AuditLogTool {
	return &AuditLogTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *AuditLogTool) Definition() mcp.Tool {
	return mcp.NewTool("corral_audit_log",
		mcp.WithDescription(
			"Show recent audit events: sprint transitions, boundary denials "+
				"and registry recoveries, newest first.",
		),
		mcp.WithString("kind",
			mcp.Description("Filter by event kind: transition, boundary_denial or recovery"),
		),
		mcp.WithString("sprint_id",
			mcp.Description("Filter by sprint ID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum events to return (default 20)"),
		),
	)
}

// Handle processes the corral_audit_log tool request.
func (t *AuditLogTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("audit subsystem is disabled (database failed to open)"), nil
	}

	kind := req.GetString("kind", "")
	sprintID := req.GetString("sprint_id", "")
	limit := intArg(req, "limit", 20)

	events, err := t.store.Recent(kind, sprintID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading audit events: %w", err)
	}

	stats, err := t.store.Stats()
	if err != nil {
		return nil, fmt.Errorf("reading audit stats: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# 📋 Audit Log\n\n")
	fmt.Fprintf(&sb, "%d event(s) total: %d transitions, %d denials, %d recoveries\n\n",
		stats.Total, stats.Transitions, stats.Denials, stats.Recoveries)

	if len(events) == 0 {
		sb.WriteString("No events match the filter.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	for _, e := range events {
		fmt.Fprintf(&sb, "- `%s` **%s**", e.CreatedAt, e.Kind)
		if e.SprintID != "" {
			fmt.Fprintf(&sb, " sprint `%s`", e.SprintID)
		}
		if e.Action != "" {
			fmt.Fprintf(&sb, " action %s", e.Action)
		}
		if e.Decision != "" {
			fmt.Fprintf(&sb, " → %s", e.Decision)
		}
		if e.Path != "" {
			fmt.Fprintf(&sb, " path `%s`", e.Path)
		}
		if e.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", e.Reason)
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
