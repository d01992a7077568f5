// Package tools implements the MCP tool handlers for the Corral
// workflow orchestrator.
//
// Each tool lives in its own file and receives its dependencies via
// its struct: the lifecycle machine for sprint transitions, the
// registry store for reads, the boundary guard for scope decisions.
// Handlers return mcp.NewToolResultError for domain rejections the
// caller can act on, and a Go error only for infrastructure failures.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corralhq/corral/internal/hashengine"
	"github.com/corralhq/corral/internal/sprint"
	"github.com/mark3labs/mcp-go/mcp"
)

// findProjectRoot walks up from the current working directory looking
// for an existing .corral/ state directory. If none is found, returns
// cwd so the first tool call can initialize state in place.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		candidate := filepath.Join(current, ".corral")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root without finding state.
			return dir, nil
		}
		current = parent
	}
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// floatArg extracts a numeric argument from a tool request. JSON
// numbers arrive as float64.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// intArg extracts an integer argument from a tool request.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// listArg extracts a string-list argument. Accepts both a JSON array
// and a comma-separated string, since MCP hosts differ in how they
// pass list parameters.
func listArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// digestSources hashes the given project-relative source files into a
// single context digest. Paths are kept relative so digests compare
// across machines. Any unreadable source surfaces as
// *hashengine.StaleContextError.
func digestSources(projectRoot string, sources []string) (string, error) {
	files := make([]hashengine.File, 0, len(sources))
	for _, rel := range sources {
		data, err := os.ReadFile(filepath.Join(projectRoot, rel))
		if err != nil {
			return "", &hashengine.StaleContextError{Path: rel, Err: err}
		}
		files = append(files, hashengine.File{Path: rel, Content: data})
	}
	return hashengine.Digest(files)
}

// writeSprintSummary appends a markdown summary of a sprint to sb.
func writeSprintSummary(sb *strings.Builder, s *sprint.Sprint) {
	if s == nil {
		return
	}
	fmt.Fprintf(sb, "**Sprint:** `%s`\n", s.ID)
	fmt.Fprintf(sb, "**Phase:** %s · **Status:** %s · **Iteration:** %d/%d\n",
		s.Phase, s.Status, s.Iteration, s.MaxIterations)
	if s.ManifestoHash != "" {
		fmt.Fprintf(sb, "**Manifesto:** `%s`\n", shortHash(s.ManifestoHash))
	}
	if len(s.LockedPaths) > 0 {
		fmt.Fprintf(sb, "**Scope:** %s\n", strings.Join(s.LockedPaths, ", "))
	}
}

// shortHash truncates a hex digest for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
