// Package registry holds the single authoritative project document and its
// persistence. The Registry records foundation state, the planning
// checklist, the active sprint, sprint history, and the global context
// digest. One registry per project root, persisted as
// .corral/registry.json.
//
// This package follows the same design principles as the sprint package:
// - SRP: types, store, recovery, and watching in separate files
// - DIP: Store is an interface; tools depend on the abstraction
package registry

import (
	"fmt"
	"time"

	"github.com/corralhq/corral/internal/sprint"
)

// CurrentVersion is the registry document schema version.
const CurrentVersion = 1

// maxAppliedRequests bounds the idempotency ring. Oldest entries are
// evicted first.
const maxAppliedRequests = 128

// Foundation records whether the project foundation has been established.
// Until Complete is true, sprint creation is refused.
type Foundation struct {
	Complete    bool   `json:"complete"`
	ContextHash string `json:"context_hash,omitempty"`
}

// PlanningChecklist tracks the quality gates that must all pass before a
// sprint manifesto can be locked.
type PlanningChecklist struct {
	Gates map[string]sprint.GateStatus `json:"gates"`
}

// DefaultGates returns the standard planning quality gates, all pending.
func DefaultGates() []string {
	return []string{
		"objectives_defined",
		"scope_boundaries",
		"success_criteria",
		"technical_design",
		"dependency_analysis",
		"risk_assessment",
		"test_strategy",
		"rollback_plan",
		"resource_allocation",
		"stakeholder_review",
	}
}

// NewPlanningChecklist creates a checklist with every default gate pending.
func NewPlanningChecklist() PlanningChecklist {
	gates := make(map[string]sprint.GateStatus, len(DefaultGates()))
	for _, name := range DefaultGates() {
		gates[name] = sprint.GateStatus{Name: name, State: sprint.GatePending}
	}
	return PlanningChecklist{Gates: gates}
}

// AllPassed reports whether every gate in the checklist has passed.
// An empty checklist has not passed.
func (c PlanningChecklist) AllPassed() bool {
	if len(c.Gates) == 0 {
		return false
	}
	for _, g := range c.Gates {
		if g.State != sprint.GatePassed {
			return false
		}
	}
	return true
}

// Incomplete returns the names of gates that have not passed, sorted by
// map iteration into a stable order by the caller if needed.
func (c PlanningChecklist) Incomplete() []string {
	var out []string
	for name, g := range c.Gates {
		if g.State != sprint.GatePassed {
			out = append(out, name)
		}
	}
	return out
}

// SetGate records a gate result. Unknown gate names create new gates so
// projects can extend the default checklist.
func (c *PlanningChecklist) SetGate(name string, state sprint.GateState, now time.Time) error {
	if err := sprint.ValidateGateState(state); err != nil {
		return err
	}
	if c.Gates == nil {
		c.Gates = make(map[string]sprint.GateStatus)
	}
	c.Gates[name] = sprint.GateStatus{
		Name:      name,
		State:     state,
		Timestamp: now.UTC(),
	}
	return nil
}

// GlobalContext is the digest of the project's context source files,
// used to detect when planning context has gone stale.
type GlobalContext struct {
	Hash        string   `json:"hash,omitempty"`
	SourceFiles []string `json:"source_files,omitempty"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// AppliedRequest is a remembered transition outcome, keyed by request ID.
// Replaying the same request returns this outcome instead of mutating
// state a second time.
type AppliedRequest struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	SprintID  string `json:"sprint_id,omitempty"`
	AppliedAt string `json:"applied_at"`
}

// Registry is the persisted project document.
type Registry struct {
	Version           int               `json:"version"`
	Foundation        Foundation        `json:"foundation"`
	PlanningChecklist PlanningChecklist `json:"planning_checklist"`
	ActiveSprint      *sprint.Sprint    `json:"active_sprint,omitempty"`
	SprintHistory     []sprint.Sprint   `json:"sprint_history,omitempty"`
	GlobalContext     GlobalContext     `json:"global_context"`
	AppliedRequests   []AppliedRequest  `json:"applied_requests,omitempty"`
	SprintCounter     int               `json:"sprint_counter"`
	UpdatedAt         string            `json:"updated_at,omitempty"`
}

// New returns a fresh registry: foundation incomplete, default gates
// pending, no sprints.
func New() *Registry {
	return &Registry{
		Version:           CurrentVersion,
		PlanningChecklist: NewPlanningChecklist(),
	}
}

// Validate checks the registry's structural invariants.
func (r *Registry) Validate() error {
	if r == nil {
		return fmt.Errorf("nil registry")
	}
	if r.Version <= 0 {
		return fmt.Errorf("invalid registry version %d", r.Version)
	}
	if r.ActiveSprint != nil {
		if err := r.ActiveSprint.Validate(); err != nil {
			return fmt.Errorf("active sprint: %w", err)
		}
		if r.ActiveSprint.Status.Terminal() {
			return fmt.Errorf("active sprint %q has terminal status %s", r.ActiveSprint.ID, r.ActiveSprint.Status)
		}
	}
	for i := range r.SprintHistory {
		h := &r.SprintHistory[i]
		if err := h.Validate(); err != nil {
			return fmt.Errorf("history sprint %d: %w", i, err)
		}
		if h.Status == sprint.StatusActive {
			return fmt.Errorf("history sprint %q is still active", h.ID)
		}
	}
	for name, g := range r.PlanningChecklist.Gates {
		if err := sprint.ValidateGateState(g.State); err != nil {
			return fmt.Errorf("gate %q: %w", name, err)
		}
	}
	return nil
}

// LookupRequest returns the remembered outcome for a request ID, if any.
func (r *Registry) LookupRequest(requestID string) (AppliedRequest, bool) {
	if requestID == "" {
		return AppliedRequest{}, false
	}
	for i := len(r.AppliedRequests) - 1; i >= 0; i-- {
		if r.AppliedRequests[i].RequestID == requestID {
			return r.AppliedRequests[i], true
		}
	}
	return AppliedRequest{}, false
}

// RememberRequest records a transition outcome, evicting the oldest entry
// once the ring is full.
func (r *Registry) RememberRequest(req AppliedRequest) {
	if req.RequestID == "" {
		return
	}
	r.AppliedRequests = append(r.AppliedRequests, req)
	if n := len(r.AppliedRequests); n > maxAppliedRequests {
		r.AppliedRequests = append(r.AppliedRequests[:0], r.AppliedRequests[n-maxAppliedRequests:]...)
	}
}

// Clone returns a deep copy. Snapshot readers get clones so concurrent
// mutation never aliases their view.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	out := *r
	out.ActiveSprint = r.ActiveSprint.Clone()
	if r.SprintHistory != nil {
		out.SprintHistory = make([]sprint.Sprint, len(r.SprintHistory))
		for i := range r.SprintHistory {
			out.SprintHistory[i] = *r.SprintHistory[i].Clone()
		}
	}
	if r.PlanningChecklist.Gates != nil {
		gates := make(map[string]sprint.GateStatus, len(r.PlanningChecklist.Gates))
		for k, v := range r.PlanningChecklist.Gates {
			gates[k] = v
		}
		out.PlanningChecklist.Gates = gates
	}
	if r.GlobalContext.SourceFiles != nil {
		out.GlobalContext.SourceFiles = append([]string(nil), r.GlobalContext.SourceFiles...)
	}
	if r.AppliedRequests != nil {
		out.AppliedRequests = append([]AppliedRequest(nil), r.AppliedRequests...)
	}
	return &out
}

// CorruptionError reports that the persisted registry could not be read
// or written safely. Callers should route these to the Reconstructor
// rather than treating the registry as empty.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("registry corrupted at %s: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
