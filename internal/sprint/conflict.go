package sprint

import (
	"sort"
	"strings"
)

// --- Conflict analysis ---
//
// Analyze is a pure read over a snapshot of sprints: it detects locked-path
// and named-resource overlaps between active sprints and recommends an
// execution strategy. Nothing here mutates state or touches disk.

// ConflictKind classifies a detected overlap.
type ConflictKind string

const (
	PathOverlap     ConflictKind = "pathOverlap"
	ResourceOverlap ConflictKind = "resourceOverlap"
)

// Severity ranks a conflict.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Strategy is the recommended execution strategy for a set of sprints.
type Strategy string

const (
	ParallelSafe             Strategy = "parallel_safe"
	ParallelWithCoordination Strategy = "parallel_with_coordination"
	SequentialRequired       Strategy = "sequential_required"
)

// Conflict records one overlap between exactly two sprints.
// Ephemeral: recomputed on demand, never persisted.
type Conflict struct {
	SprintIDs [2]string    `json:"sprint_ids"`
	Kind      ConflictKind `json:"kind"`
	Severity  Severity     `json:"severity"`
	// Subject is the overlapping path pattern or resource id.
	Subject string `json:"subject"`
}

// Analysis is the result of conflict analysis over a sprint set.
type Analysis struct {
	Strategy  Strategy   `json:"strategy"`
	Conflicts []Conflict `json:"conflicts"`
}

// Analyze computes pairwise conflicts across all active sprints in the
// input and selects a strategy from the conflict set:
//
//	no conflicts            → parallel_safe
//	only resource overlaps  → parallel_with_coordination
//	any path overlap        → sequential_required
//
// The policy is monotonic: adding sprints can only move the strategy
// toward more restrictive.
func Analyze(sprints []Sprint) Analysis {
	active := make([]Sprint, 0, len(sprints))
	for _, s := range sprints {
		if s.Status == StatusActive {
			active = append(active, s)
		}
	}
	// Stable pair ordering regardless of input order.
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	var conflicts []Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			conflicts = append(conflicts, pairConflicts(&active[i], &active[j])...)
		}
	}

	strategy := ParallelSafe
	for _, c := range conflicts {
		switch c.Kind {
		case PathOverlap:
			strategy = SequentialRequired
		case ResourceOverlap:
			if strategy == ParallelSafe {
				strategy = ParallelWithCoordination
			}
		}
	}

	return Analysis{Strategy: strategy, Conflicts: conflicts}
}

// pairConflicts detects overlaps between two sprints.
func pairConflicts(a, b *Sprint) []Conflict {
	var out []Conflict

	for _, pa := range a.LockedPaths {
		for _, pb := range b.LockedPaths {
			if PatternsOverlap(pa, pb) {
				out = append(out, Conflict{
					SprintIDs: [2]string{a.ID, b.ID},
					Kind:      PathOverlap,
					Severity:  SeverityHigh,
					Subject:   overlapSubject(pa, pb),
				})
			}
		}
	}

	resources := make(map[string]bool, len(a.Resources))
	for _, r := range a.Resources {
		resources[r] = true
	}
	for _, r := range b.Resources {
		if resources[r] {
			out = append(out, Conflict{
				SprintIDs: [2]string{a.ID, b.ID},
				Kind:      ResourceOverlap,
				Severity:  SeverityMedium,
				Subject:   r,
			})
		}
	}

	return out
}

// PatternsOverlap conservatively decides whether two locked-path patterns
// can match a common path. Glob metacharacters make exact intersection
// undecidable cheaply, so the check compares the literal prefixes before
// the first metacharacter: if either prefix extends the other, the
// patterns are treated as overlapping. Ambiguity counts as overlap —
// the same fail-closed posture the boundary guard takes.
func PatternsOverlap(a, b string) bool {
	pa := literalPrefix(a)
	pb := literalPrefix(b)
	return strings.HasPrefix(pa, pb) || strings.HasPrefix(pb, pa)
}

// literalPrefix returns the pattern text before the first glob
// metacharacter, with any trailing partial path segment retained —
// "src/auth/*" → "src/auth/", "src/auth/token.go" → itself.
func literalPrefix(pattern string) string {
	if idx := strings.IndexAny(pattern, "*?["); idx >= 0 {
		return pattern[:idx]
	}
	return pattern
}

// overlapSubject picks the more specific of two overlapping patterns
// for reporting.
func overlapSubject(a, b string) string {
	if len(literalPrefix(a)) >= len(literalPrefix(b)) {
		return a
	}
	return b
}
