// Package lifecycle is the sprint state machine. All transitions go
// through Machine.Apply, which serializes them under the registry's
// writer lock, enforces approval tokens and planning gates, and persists
// each applied transition atomically before returning.
package lifecycle

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corralhq/corral/internal/hashengine"
	"github.com/corralhq/corral/internal/registry"
	"github.com/corralhq/corral/internal/sprint"
)

// Actions accepted by Apply.
const (
	ActionCreate        = "create"
	ActionLockManifesto = "lock-manifesto"
	ActionAdvance       = "advance"
	ActionPause         = "pause"
	ActionResume        = "resume"
	ActionComplete      = "complete"
	ActionAbandon       = "abandon"
)

// validActions is the set of allowed transition actions.
var validActions = map[string]bool{
	ActionCreate:        true,
	ActionLockManifesto: true,
	ActionAdvance:       true,
	ActionPause:         true,
	ActionResume:        true,
	ActionComplete:      true,
	ActionAbandon:       true,
}

// OverrideIterationLimit is the payload token ("override_token" key) that
// authorizes advancing past a sprint's iteration budget.
const OverrideIterationLimit = "override:iteration-limit"

// Response statuses.
const (
	StatusOK       = "ok"
	StatusRejected = "rejected"
)

// Request is a structured transition request. ApprovalToken models the
// human-in-the-loop gate: phase-advancing actions require
// "<action>:<current-phase>".
type Request struct {
	Action        string         `json:"action"`
	SprintID      string         `json:"sprint_id,omitempty"`
	ApprovalToken string         `json:"approval_token,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Assessment is the non-blocking review signal emitted when an advance
// lands on a configured checkpoint iteration. CompletionRate is supplied
// by the caller; the machine carries it, it does not compute progress.
type Assessment struct {
	Iteration      int     `json:"iteration"`
	CompletionRate float64 `json:"completion_rate"`
}

// Response is the outcome of a transition request. Rejections carry a
// reason and leave state untouched; replays of an already-applied
// request return the recorded outcome with Replayed set.
type Response struct {
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Sprint     *sprint.Sprint `json:"sprint,omitempty"`
	Assessment *Assessment    `json:"assessment,omitempty"`
	Replayed   bool           `json:"replayed,omitempty"`
	RequestID  string         `json:"request_id"`
}

// Options configure per-project machine behavior.
type Options struct {
	// MaxIterations is the default iteration budget for new sprints.
	MaxIterations int
	// Checkpoints are the iteration counts that trigger an Assessment.
	Checkpoints []int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 50
	}
	if len(o.Checkpoints) == 0 {
		o.Checkpoints = []int{10, 25, 40, 60}
	}
	return o
}

// TransitionRecorder receives the outcome of every applied or rejected
// transition. Implementations must tolerate being called concurrently
// and must never fail the transition itself.
type TransitionRecorder interface {
	RecordTransition(sprintID, action, status, reason string)
}

// Machine applies transition requests to a project's registry.
type Machine struct {
	store    registry.Store
	opts     Options
	recorder TransitionRecorder
}

// NewMachine creates a Machine backed by the given registry store.
func NewMachine(store registry.Store, opts Options) *Machine {
	return &Machine{store: store, opts: opts.withDefaults()}
}

// SetRecorder attaches an audit recorder for transition outcomes.
func (m *Machine) SetRecorder(r TransitionRecorder) {
	m.recorder = r
}

// Apply executes one transition request against the project's registry.
// Domain refusals come back as Response{Status: rejected} with a nil
// error; a non-nil error means infrastructure failure (I/O, corruption)
// with no transition applied. Requests are idempotent by RequestID:
// replaying an applied request returns its recorded outcome without a
// second state change. Missing RequestIDs are assigned.
func (m *Machine) Apply(projectRoot string, req Request) (Response, error) {
	if !validActions[req.Action] {
		return Response{
			Status:    StatusRejected,
			Reason:    fmt.Sprintf("invalid action %q", req.Action),
			RequestID: req.RequestID,
		}, nil
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	var resp Response
	var targetID string
	_, err := m.store.Mutate(projectRoot, func(reg *registry.Registry) error {
		if reg.ActiveSprint != nil {
			targetID = reg.ActiveSprint.ID
		}
		if rec, ok := reg.LookupRequest(req.RequestID); ok {
			resp = Response{
				Status:    rec.Status,
				Reason:    rec.Reason,
				Sprint:    findSprint(reg, rec.SprintID),
				Replayed:  true,
				RequestID: req.RequestID,
			}
			return errReplay
		}

		s, assessment, err := m.transition(projectRoot, reg, req)
		if err != nil {
			return err
		}
		resp = Response{
			Status:     StatusOK,
			Sprint:     s.Clone(),
			Assessment: assessment,
			RequestID:  req.RequestID,
		}
		reg.RememberRequest(registry.AppliedRequest{
			RequestID: req.RequestID,
			Action:    req.Action,
			Status:    StatusOK,
			SprintID:  s.ID,
			AppliedAt: timeNow().UTC().Format(time.RFC3339),
		})
		return nil
	})

	switch {
	case err == nil, err == errReplay:
		if !resp.Replayed {
			m.record(resp.Sprint, req.Action, resp.Status, resp.Reason)
		}
		return resp, nil
	case isRejection(err):
		m.recordID(targetID, req.Action, StatusRejected, err.Error())
		return Response{Status: StatusRejected, Reason: err.Error(), RequestID: req.RequestID}, nil
	default:
		return Response{}, err
	}
}

// record reports a transition outcome to the attached recorder.
func (m *Machine) record(s *sprint.Sprint, action, status, reason string) {
	sprintID := ""
	if s != nil {
		sprintID = s.ID
	}
	m.recordID(sprintID, action, status, reason)
}

func (m *Machine) recordID(sprintID, action, status, reason string) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordTransition(sprintID, action, status, reason)
}

// transition dispatches one action. It mutates reg in place; any error
// aborts the mutation before persistence.
func (m *Machine) transition(projectRoot string, reg *registry.Registry, req Request) (*sprint.Sprint, *Assessment, error) {
	now := timeNow().UTC()

	switch req.Action {
	case ActionCreate:
		s, err := m.create(reg, req, now)
		return s, nil, err
	case ActionLockManifesto:
		s, err := m.lockManifesto(reg, req, now)
		return s, nil, err
	case ActionAdvance:
		return m.advance(reg, req, now)
	case ActionPause:
		s, err := m.pause(reg, req, now)
		return s, nil, err
	case ActionResume:
		s, err := m.resume(reg, req, now)
		return s, nil, err
	case ActionComplete:
		s, err := m.complete(projectRoot, reg, req, now)
		return s, nil, err
	case ActionAbandon:
		s, err := m.abandon(projectRoot, reg, req, now)
		return s, nil, err
	}
	return nil, nil, &ValidationError{Msg: fmt.Sprintf("invalid action %q", req.Action)}
}

func (m *Machine) create(reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	if !reg.Foundation.Complete {
		return nil, &PreconditionError{Msg: "project foundation not established: run foundation_init before creating sprints"}
	}
	if reg.ActiveSprint != nil {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is already in progress: complete, abandon, or pause it first", reg.ActiveSprint.ID)}
	}
	description := payloadString(req.Payload, "description")
	if description == "" {
		return nil, &ValidationError{Msg: "create requires a non-empty description in the payload"}
	}
	maxIterations := payloadInt(req.Payload, "max_iterations")
	if maxIterations <= 0 {
		maxIterations = m.opts.MaxIterations
	}

	reg.SprintCounter++
	s := &sprint.Sprint{
		ID:                    sprint.NewID(now, reg.SprintCounter, description),
		Phase:                 sprint.PhasePlanning,
		Status:                sprint.StatusActive,
		MaxIterations:         maxIterations,
		LockedPaths:           payloadStringSlice(req.Payload, "locked_paths"),
		Resources:             payloadStringSlice(req.Payload, "resources"),
		ContextHashAtCreation: reg.GlobalContext.Hash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	reg.ActiveSprint = s
	return s, nil
}

func (m *Machine) lockManifesto(reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	s, err := activeSprint(reg, req.SprintID)
	if err != nil {
		return nil, err
	}
	if s.Phase != sprint.PhasePlanning {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is in %s: the manifesto is already locked", s.ID, s.Phase)}
	}
	if err := checkToken(req, ActionLockManifesto, s.Phase); err != nil {
		return nil, err
	}
	if !reg.PlanningChecklist.AllPassed() {
		incomplete := reg.PlanningChecklist.Incomplete()
		sort.Strings(incomplete)
		return nil, &PreconditionError{Msg: fmt.Sprintf("planning checklist incomplete: %d gate(s) not passed: %s",
			len(incomplete), strings.Join(incomplete, ", "))}
	}
	if len(s.LockedPaths) == 0 {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q declares no locked paths: refusing to lock an empty scope", s.ID)}
	}

	if err := checkScopeConflicts(reg, s); err != nil {
		return nil, err
	}

	hash, err := manifestoDigest(s, reg.PlanningChecklist)
	if err != nil {
		return nil, fmt.Errorf("computing manifesto hash: %w", err)
	}
	s.ManifestoHash = hash
	s.Phase = sprint.PhaseExecution
	s.UpdatedAt = now
	return s, nil
}

func (m *Machine) advance(reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, *Assessment, error) {
	s, err := activeSprint(reg, req.SprintID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkToken(req, ActionAdvance, s.Phase); err != nil {
		return nil, nil, err
	}

	var assessment *Assessment
	switch s.Phase {
	case sprint.PhasePlanning:
		return nil, nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q cannot advance out of planning: lock the manifesto first", s.ID)}
	case sprint.PhaseExecution:
		if payloadBool(req.Payload, "phase_complete") {
			s.Phase = sprint.PhaseTesting
			break
		}
		next := s.Iteration + 1
		if next > s.MaxIterations && payloadString(req.Payload, "override_token") != OverrideIterationLimit {
			return nil, nil, &IterationLimitError{SprintID: s.ID, Iteration: s.Iteration, MaxIterations: s.MaxIterations}
		}
		s.Iteration = next
		if slices.Contains(m.opts.Checkpoints, next) {
			assessment = &Assessment{
				Iteration:      next,
				CompletionRate: payloadFloat(req.Payload, "completion_rate"),
			}
		}
	case sprint.PhaseTesting:
		s.Phase = sprint.PhaseEvaluation
	case sprint.PhaseEvaluation:
		return nil, nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is at evaluation: use complete or abandon", s.ID)}
	}

	s.UpdatedAt = now
	return s, assessment, nil
}

func (m *Machine) pause(reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	s, err := activeSprint(reg, req.SprintID)
	if err != nil {
		return nil, err
	}
	if !s.Phase.AtLeast(sprint.PhaseExecution) {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is still in planning: abandon it instead of pausing", s.ID)}
	}

	s.Status = sprint.StatusPaused
	s.PausedPhase = s.Phase
	s.UpdatedAt = now
	reg.SprintHistory = append(reg.SprintHistory, *s.Clone())
	reg.ActiveSprint = nil
	return s, nil
}

func (m *Machine) resume(reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	if reg.ActiveSprint != nil {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is already in progress: only one sprint runs at a time", reg.ActiveSprint.ID)}
	}

	idx := -1
	for i := range reg.SprintHistory {
		h := &reg.SprintHistory[i]
		if h.Status != sprint.StatusPaused {
			continue
		}
		if req.SprintID != "" && h.ID != req.SprintID {
			continue
		}
		if idx >= 0 {
			return nil, &ValidationError{Msg: "multiple paused sprints exist: resume requires a sprint_id"}
		}
		idx = i
	}
	if idx < 0 {
		if req.SprintID != "" {
			return nil, &PreconditionError{Msg: fmt.Sprintf("no paused sprint %q to resume", req.SprintID)}
		}
		return nil, &PreconditionError{Msg: "no paused sprint to resume"}
	}

	s := reg.SprintHistory[idx].Clone()
	s.Status = sprint.StatusActive
	s.Phase = s.PausedPhase
	s.PausedPhase = ""
	s.UpdatedAt = now
	reg.SprintHistory = append(reg.SprintHistory[:idx], reg.SprintHistory[idx+1:]...)
	reg.ActiveSprint = s
	return s, nil
}

func (m *Machine) complete(projectRoot string, reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	s, err := activeSprint(reg, req.SprintID)
	if err != nil {
		return nil, err
	}
	if s.Phase != sprint.PhaseEvaluation {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is in %s: only evaluation sprints can complete", s.ID, s.Phase)}
	}
	if err := checkToken(req, ActionComplete, s.Phase); err != nil {
		return nil, err
	}

	s.Status = sprint.StatusCompleted
	s.UpdatedAt = now
	return s, m.archive(projectRoot, reg, s)
}

func (m *Machine) abandon(projectRoot string, reg *registry.Registry, req Request, now time.Time) (*sprint.Sprint, error) {
	s, err := activeSprint(reg, req.SprintID)
	if err != nil {
		return nil, err
	}
	reason := payloadString(req.Payload, "reason")
	if reason == "" {
		return nil, &ValidationError{Msg: "abandon requires a non-empty reason in the payload"}
	}

	s.Status = sprint.StatusAbandoned
	s.AbandonReason = reason
	s.UpdatedAt = now
	return s, m.archive(projectRoot, reg, s)
}

// archive moves a terminal sprint out of the active slot: appended to
// in-registry history and written to its own history record, which is
// what partial recovery rebuilds from. The record lands on disk before
// the registry commits, so an aborted save can leave an orphaned
// history file but never a committed terminal sprint without its
// record; LoadHistoryRecords and recovery tolerate the orphan.
func (m *Machine) archive(projectRoot string, reg *registry.Registry, s *sprint.Sprint) error {
	if err := m.store.ArchiveSprint(projectRoot, *s); err != nil {
		return err
	}
	reg.SprintHistory = append(reg.SprintHistory, *s.Clone())
	reg.ActiveSprint = nil
	return nil
}

// activeSprint resolves the request's target sprint. sprintID may be
// empty; when given it must match the active sprint.
func activeSprint(reg *registry.Registry, sprintID string) (*sprint.Sprint, error) {
	if reg.ActiveSprint == nil {
		return nil, &PreconditionError{Msg: "no active sprint"}
	}
	if sprintID != "" && sprintID != reg.ActiveSprint.ID {
		return nil, &PreconditionError{Msg: fmt.Sprintf("sprint %q is not the active sprint (%q is)", sprintID, reg.ActiveSprint.ID)}
	}
	return reg.ActiveSprint, nil
}

// checkToken enforces the approval gate for phase-advancing actions.
// The expected token is "<action>:<current-phase>".
func checkToken(req Request, action string, phase sprint.Phase) error {
	expected := fmt.Sprintf("%s:%s", action, phase)
	if req.ApprovalToken != expected {
		return &PreconditionError{Msg: fmt.Sprintf("approval token does not match gate %q", expected)}
	}
	return nil
}

// checkScopeConflicts analyzes the locking sprint against every sprint
// that still owns a scope (paused sprints keep theirs) and refuses the
// lock when the strategy demands sequential execution.
func checkScopeConflicts(reg *registry.Registry, s *sprint.Sprint) error {
	cands := []sprint.Sprint{*s.Clone()}
	for i := range reg.SprintHistory {
		h := &reg.SprintHistory[i]
		if h.Status != sprint.StatusPaused {
			continue
		}
		c := h.Clone()
		c.Status = sprint.StatusActive // paused scopes still count for overlap
		cands = append(cands, *c)
	}
	if len(cands) < 2 {
		return nil
	}

	analysis := sprint.Analyze(cands)
	if analysis.Strategy != sprint.SequentialRequired {
		return nil
	}
	var subjects []string
	for _, c := range analysis.Conflicts {
		if c.Kind == sprint.PathOverlap {
			subjects = append(subjects, c.Subject)
		}
	}
	return &ConflictError{SprintID: s.ID, Strategy: string(analysis.Strategy), Subjects: subjects}
}

// manifestoDigest hashes the locked-path set plus the gate snapshot so
// any later drift from the approved plan is detectable.
func manifestoDigest(s *sprint.Sprint, checklist registry.PlanningChecklist) (string, error) {
	paths := append([]string(nil), s.LockedPaths...)
	sort.Strings(paths)

	docs := map[string]string{
		"locked-paths": strings.Join(paths, "\n"),
	}
	for name, g := range checklist.Gates {
		docs["gate:"+name] = string(g.State)
	}
	return hashengine.DigestStrings(docs)
}

func findSprint(reg *registry.Registry, id string) *sprint.Sprint {
	if id == "" {
		return nil
	}
	if reg.ActiveSprint != nil && reg.ActiveSprint.ID == id {
		return reg.ActiveSprint.Clone()
	}
	for i := range reg.SprintHistory {
		if reg.SprintHistory[i].ID == id {
			return reg.SprintHistory[i].Clone()
		}
	}
	return nil
}

// --- payload helpers ---
// Payloads arrive as decoded JSON, so numbers are float64.

func payloadString(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return strings.TrimSpace(v)
}

func payloadBool(p map[string]any, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func payloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func payloadStringSlice(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
