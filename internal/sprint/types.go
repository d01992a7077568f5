// Package sprint defines the sprint domain model: phases, statuses,
// planning gates, and the conflict analysis over concurrently active
// sprints.
//
// This package follows the same design principles as the rest of Corral:
// - SRP: types, conflict analysis, and lifecycle rules in separate files
// - pure functions where possible; persistence lives in the registry package
package sprint

import (
	"fmt"
	"strings"
	"time"
)

// --- Phase enum ---

// Phase is the current lifecycle phase of a sprint.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseExecution  Phase = "execution"
	PhaseTesting    Phase = "testing"
	PhaseEvaluation Phase = "evaluation"
)

// phaseOrder gives each phase an ordinal for "execution or later" checks.
var phaseOrder = map[Phase]int{
	PhasePlanning:   0,
	PhaseExecution:  1,
	PhaseTesting:    2,
	PhaseEvaluation: 3,
}

// ValidatePhase returns an error if the phase is not recognized.
func ValidatePhase(p Phase) error {
	if _, ok := phaseOrder[p]; !ok {
		return fmt.Errorf("invalid phase %q: must be one of: planning, execution, testing, evaluation", p)
	}
	return nil
}

// AtLeast reports whether p is the given phase or a later one.
func (p Phase) AtLeast(other Phase) bool {
	po, ok1 := phaseOrder[p]
	oo, ok2 := phaseOrder[other]
	return ok1 && ok2 && po >= oo
}

// Next returns the phase that follows p in the forward lifecycle,
// or empty when p is the final phase.
func (p Phase) Next() Phase {
	switch p {
	case PhaseExecution:
		return PhaseTesting
	case PhaseTesting:
		return PhaseEvaluation
	}
	return ""
}

// --- Status enum ---

// Status tracks the overall lifecycle of a sprint.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// validStatuses is the set of allowed sprint statuses.
var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusPaused:    true,
	StatusCompleted: true,
	StatusAbandoned: true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid status %q: must be one of: active, paused, completed, abandoned", s)
	}
	return nil
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// --- Planning gates ---

// GateState is the state of a single planning-checklist gate.
type GateState string

const (
	GatePending GateState = "pending"
	GatePassed  GateState = "passed"
	GateFailed  GateState = "failed"
)

// ValidateGateState returns an error if the state is not recognized.
func ValidateGateState(s GateState) error {
	switch s {
	case GatePending, GatePassed, GateFailed:
		return nil
	}
	return fmt.Errorf("invalid gate state %q: must be one of: pending, passed, failed", s)
}

// GateStatus records one named precondition in the planning checklist.
// The core only records pass/fail — it never evaluates gate content.
type GateStatus struct {
	Name      string    `json:"name"`
	State     GateState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// --- Sprint ---

// Sprint is the root data structure for a unit of work tracked through
// the lifecycle state machine.
type Sprint struct {
	ID            string   `json:"id"`
	Phase         Phase    `json:"phase"`
	Status        Status   `json:"status"`
	Iteration     int      `json:"iteration"`
	MaxIterations int      `json:"max_iterations"`
	LockedPaths   []string `json:"locked_paths"`
	// Resources are named external resource identifiers (services,
	// databases) the sprint declares it will touch. Used only by
	// conflict analysis.
	Resources []string `json:"resources,omitempty"`
	// ManifestoHash is the digest of the locked-path set plus the
	// quality-gate snapshot, fixed at lock time. Empty until the sprint
	// leaves planning.
	ManifestoHash         string    `json:"manifesto_hash,omitempty"`
	ContextHashAtCreation string    `json:"context_hash_at_creation,omitempty"`
	AbandonReason         string    `json:"abandon_reason,omitempty"`
	// PausedPhase preserves the phase to resume into while paused.
	PausedPhase Phase     `json:"paused_phase,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Locked reports whether the sprint's manifesto has been locked —
// i.e. it has left the planning phase. LockedPaths are immutable from
// that point on; mutating them afterwards is a programming error.
func (s *Sprint) Locked() bool {
	return s.ManifestoHash != ""
}

// Validate checks structural invariants of a sprint record.
func (s *Sprint) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("sprint has no id")
	}
	if err := ValidatePhase(s.Phase); err != nil {
		return fmt.Errorf("sprint %q: %w", s.ID, err)
	}
	if err := ValidateStatus(s.Status); err != nil {
		return fmt.Errorf("sprint %q: %w", s.ID, err)
	}
	if s.Iteration < 0 {
		return fmt.Errorf("sprint %q: negative iteration %d", s.ID, s.Iteration)
	}
	if s.Phase.AtLeast(PhaseExecution) && !s.Locked() {
		return fmt.Errorf("sprint %q: phase %s without a locked manifesto", s.ID, s.Phase)
	}
	if s.Status == StatusPaused && s.PausedPhase == "" {
		return fmt.Errorf("sprint %q: paused without a recorded phase", s.ID)
	}
	if s.Status == StatusAbandoned && strings.TrimSpace(s.AbandonReason) == "" {
		return fmt.Errorf("sprint %q: abandoned without a reason", s.ID)
	}
	return nil
}

// Clone returns a deep copy of the sprint. Snapshots handed to readers
// must never alias the registry's own slices.
func (s *Sprint) Clone() *Sprint {
	if s == nil {
		return nil
	}
	out := *s
	out.LockedPaths = append([]string(nil), s.LockedPaths...)
	out.Resources = append([]string(nil), s.Resources...)
	return &out
}

// --- ID generation ---

const maxSlugLen = 50

// NewID derives a sprint ID from the creation time, a same-second
// sequence number, and a slug of the description.
// Example: "Harden auth token flow" → "20260830-141503-0-harden-auth-token-flow".
func NewID(now time.Time, seq int, description string) string {
	return fmt.Sprintf("%s-%d-%s", now.UTC().Format("20060102-150405"), seq, Slugify(description))
}

// Slugify converts a description string into a filesystem-safe slug.
// Lowercased, spaces/underscores become hyphens, other punctuation is
// dropped, consecutive hyphens collapse, truncated at a word boundary.
// Empty input returns "unnamed-sprint".
func Slugify(description string) string {
	if strings.TrimSpace(description) == "" {
		return "unnamed-sprint"
	}

	s := strings.ToLower(strings.TrimSpace(description))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "unnamed-sprint"
	}

	if len(slug) <= maxSlugLen {
		return slug
	}

	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}
	return strings.TrimRight(truncated, "-")
}
