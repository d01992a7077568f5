// Package boundary enforces sprint file-path boundaries.
//
// Every mutating file operation must be authorized against the active
// sprint's locked-path set before it runs. The policy is fail-closed:
// reads are always allowed, and a write or delete is denied unless a
// locked, executing sprint explicitly covers the path. Unknown sprint,
// missing lock, pattern errors, and path escapes all deny.
package boundary

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corralhq/corral/internal/sprint"
)

// Kind classifies a file operation.
type Kind string

const (
	OpRead   Kind = "read"
	OpWrite  Kind = "write"
	OpDelete Kind = "delete"
)

// ValidateKind returns an error if the operation kind is not recognized.
func ValidateKind(k Kind) error {
	switch k {
	case OpRead, OpWrite, OpDelete:
		return nil
	}
	return fmt.Errorf("invalid operation kind %q: must be one of: read, write, delete", k)
}

// Operation is a requested file-system operation.
type Operation struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	// Pattern is the locked-path pattern that granted access, when allowed
	// by a match.
	Pattern string `json:"pattern,omitempty"`
}

func allow(reason, pattern string) Decision {
	return Decision{Allowed: true, Reason: reason, Pattern: pattern}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Recorder receives denied operations for the audit trail. Nil-safe:
// a Guard without a recorder still enforces, it just doesn't log.
type Recorder interface {
	RecordDenial(sprintID, path, reason string)
}

// Guard authorizes file operations against sprint boundaries.
type Guard struct {
	recorder Recorder
}

// NewGuard creates a Guard. recorder may be nil.
func NewGuard(recorder Recorder) *Guard {
	return &Guard{recorder: recorder}
}

// Authorize checks one operation against the given sprint. The sprint is
// the caller's snapshot of the currently active sprint; nil means no
// sprint is active. This must be called synchronously before every
// mutating file operation.
func (g *Guard) Authorize(op Operation, s *sprint.Sprint) Decision {
	d := evaluate(op, s)
	if !d.Allowed && g != nil && g.recorder != nil {
		id := ""
		if s != nil {
			id = s.ID
		}
		g.recorder.RecordDenial(id, op.Path, d.Reason)
	}
	return d
}

// evaluate applies the boundary policy. Pure.
func evaluate(op Operation, s *sprint.Sprint) Decision {
	if err := ValidateKind(op.Kind); err != nil {
		return deny(err.Error())
	}
	if strings.TrimSpace(op.Path) == "" {
		return deny("no path specified")
	}

	// Read-only access never threatens isolation.
	if op.Kind == OpRead {
		return allow("read operations are always allowed", "")
	}

	if s == nil {
		return deny("no active sprint: all mutations denied")
	}
	if s.Status != sprint.StatusActive {
		return deny(fmt.Sprintf("sprint %q is %s, not active", s.ID, s.Status))
	}
	if !s.Phase.AtLeast(sprint.PhaseExecution) {
		return deny(fmt.Sprintf("sprint %q is still in %s: manifesto not locked for mutation", s.ID, s.Phase))
	}
	if !s.Locked() {
		return deny(fmt.Sprintf("sprint %q has no locked manifesto", s.ID))
	}
	if len(s.LockedPaths) == 0 {
		return deny(fmt.Sprintf("sprint %q locked an empty path set: all mutations denied", s.ID))
	}

	path := filepath.ToSlash(filepath.Clean(op.Path))
	// A cleaned path that still escapes upward can never be inside a
	// locked scope.
	if path == ".." || strings.HasPrefix(path, "../") {
		return deny(fmt.Sprintf("path %q escapes the project root", op.Path))
	}

	for _, pattern := range s.LockedPaths {
		ok, err := matchPattern(pattern, path)
		if err != nil {
			// Corrupted pattern: fail closed rather than guessing.
			return deny(fmt.Sprintf("locked-path pattern %q is malformed: %v", pattern, err))
		}
		if ok {
			return allow(fmt.Sprintf("path within sprint boundary %q", pattern), pattern)
		}
	}

	return deny(fmt.Sprintf("path %q is outside the boundaries of sprint %q", op.Path, s.ID))
}

// matchPattern matches a cleaned slash-separated path against one
// locked-path pattern. Supported forms:
//
//	exact file        "src/auth/token.go"
//	directory prefix  "src/auth/" or "src/auth/*" (covers all descendants)
//	glob              "src/*.go", matched against the full path and,
//	                  for patterns without a separator, the basename
func matchPattern(pattern, path string) (bool, error) {
	pattern = filepath.ToSlash(strings.TrimSpace(pattern))
	if pattern == "" {
		return false, nil
	}

	// Directory-style patterns cover every descendant.
	if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == dir || strings.HasPrefix(path, dir+"/"), nil
	}
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		return path == dir || strings.HasPrefix(path, dir+"/"), nil
	}

	// Exact match, including glob-free directory names.
	if !strings.ContainsAny(pattern, "*?[") {
		return path == pattern || strings.HasPrefix(path, pattern+"/"), nil
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil || matched {
		return matched, err
	}
	// Basename-only patterns like "*.md" apply anywhere.
	if !strings.Contains(pattern, "/") {
		return filepath.Match(pattern, filepath.Base(path))
	}
	return false, nil
}
