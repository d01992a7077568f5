package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/corralhq/corral/internal/sprint"
)

func TestNewRegistry(t *testing.T) {
	reg := New()

	if reg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", reg.Version, CurrentVersion)
	}
	if reg.Foundation.Complete {
		t.Error("new registry has foundation complete")
	}
	if got, want := len(reg.PlanningChecklist.Gates), len(DefaultGates()); got != want {
		t.Errorf("gate count = %d, want %d", got, want)
	}
	if reg.PlanningChecklist.AllPassed() {
		t.Error("fresh checklist reports all passed")
	}
	if err := reg.Validate(); err != nil {
		t.Errorf("Validate() on new registry: %v", err)
	}
}

func TestChecklistAllPassed(t *testing.T) {
	c := NewPlanningChecklist()
	now := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	for _, name := range DefaultGates() {
		if err := c.SetGate(name, sprint.GatePassed, now); err != nil {
			t.Fatalf("SetGate(%q): %v", name, err)
		}
	}
	if !c.AllPassed() {
		t.Error("AllPassed() = false with every gate passed")
	}

	if err := c.SetGate("risk_assessment", sprint.GateFailed, now); err != nil {
		t.Fatalf("SetGate: %v", err)
	}
	if c.AllPassed() {
		t.Error("AllPassed() = true with a failed gate")
	}
	if got := c.Incomplete(); len(got) != 1 || got[0] != "risk_assessment" {
		t.Errorf("Incomplete() = %v, want [risk_assessment]", got)
	}

	if err := c.SetGate("risk_assessment", "maybe", now); err == nil {
		t.Error("SetGate accepted invalid state")
	}
}

func TestSetGateStampsTime(t *testing.T) {
	c := NewPlanningChecklist()
	local := time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))

	if err := c.SetGate("technical_design", sprint.GatePassed, local); err != nil {
		t.Fatalf("SetGate: %v", err)
	}

	got := c.Gates["technical_design"].Timestamp
	if got.IsZero() {
		t.Fatal("gate timestamp not recorded")
	}
	if !got.Equal(local) {
		t.Errorf("timestamp = %v, want %v", got, local)
	}
	if got.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", got.Location())
	}
}

func TestChecklistEmptyNeverPasses(t *testing.T) {
	var c PlanningChecklist
	if c.AllPassed() {
		t.Error("empty checklist reports all passed")
	}
}

func TestRegistryValidate(t *testing.T) {
	active := &sprint.Sprint{
		ID:     "20260115-103000-1-auth",
		Phase:  sprint.PhasePlanning,
		Status: sprint.StatusActive,
	}
	completed := sprint.Sprint{
		ID:            "20260110-090000-1-old",
		Phase:         sprint.PhaseEvaluation,
		Status:        sprint.StatusCompleted,
		ManifestoHash: "abc",
	}

	reg := New()
	reg.ActiveSprint = active
	reg.SprintHistory = []sprint.Sprint{completed}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate() on good registry: %v", err)
	}

	bad := reg.Clone()
	bad.ActiveSprint.Status = sprint.StatusCompleted
	bad.ActiveSprint.ManifestoHash = "abc"
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted terminal active sprint")
	}

	bad = reg.Clone()
	bad.SprintHistory[0].Status = sprint.StatusActive
	bad.SprintHistory[0].Phase = sprint.PhasePlanning
	bad.SprintHistory[0].ManifestoHash = ""
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted active sprint in history")
	}

	bad = reg.Clone()
	bad.Version = 0
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted version 0")
	}
}

func TestAppliedRequestRing(t *testing.T) {
	reg := New()

	reg.RememberRequest(AppliedRequest{RequestID: "req-1", Action: "create", Status: "ok"})
	got, ok := reg.LookupRequest("req-1")
	if !ok || got.Action != "create" {
		t.Fatalf("LookupRequest(req-1) = %+v, %v", got, ok)
	}
	if _, ok := reg.LookupRequest("req-2"); ok {
		t.Error("LookupRequest found unknown request")
	}
	if _, ok := reg.LookupRequest(""); ok {
		t.Error("LookupRequest matched empty id")
	}

	// Empty IDs are not remembered.
	reg.RememberRequest(AppliedRequest{RequestID: "", Action: "advance"})
	if len(reg.AppliedRequests) != 1 {
		t.Errorf("ring length = %d after empty-id remember, want 1", len(reg.AppliedRequests))
	}
}

func TestAppliedRequestRingEviction(t *testing.T) {
	reg := New()
	for i := 0; i < maxAppliedRequests+10; i++ {
		reg.RememberRequest(AppliedRequest{RequestID: fmt.Sprintf("req-%d", i), Action: "advance", Status: "ok"})
	}

	if len(reg.AppliedRequests) != maxAppliedRequests {
		t.Fatalf("ring length = %d, want %d", len(reg.AppliedRequests), maxAppliedRequests)
	}
	if _, ok := reg.LookupRequest("req-0"); ok {
		t.Error("oldest request survived eviction")
	}
	if _, ok := reg.LookupRequest(fmt.Sprintf("req-%d", maxAppliedRequests+9)); !ok {
		t.Error("newest request missing after eviction")
	}
}

func TestRegistryClone(t *testing.T) {
	reg := New()
	reg.ActiveSprint = &sprint.Sprint{
		ID:          "20260115-103000-1-auth",
		Phase:       sprint.PhasePlanning,
		Status:      sprint.StatusActive,
		LockedPaths: []string{"src/auth/*"},
	}
	reg.GlobalContext.SourceFiles = []string{"documentation/architecture.md"}
	reg.RememberRequest(AppliedRequest{RequestID: "req-1", Action: "create", Status: "ok"})

	clone := reg.Clone()
	clone.ActiveSprint.LockedPaths[0] = "src/billing/*"
	clone.GlobalContext.SourceFiles[0] = "other.md"
	clone.PlanningChecklist.Gates["objectives_defined"] = sprint.GateStatus{Name: "objectives_defined", State: sprint.GatePassed}
	clone.AppliedRequests[0].Status = "rejected"

	if reg.ActiveSprint.LockedPaths[0] != "src/auth/*" {
		t.Error("clone aliases active sprint locked paths")
	}
	if reg.GlobalContext.SourceFiles[0] != "documentation/architecture.md" {
		t.Error("clone aliases global context source files")
	}
	if reg.PlanningChecklist.Gates["objectives_defined"].State == sprint.GatePassed {
		t.Error("clone aliases checklist gates")
	}
	if reg.AppliedRequests[0].Status != "ok" {
		t.Error("clone aliases applied requests")
	}

	var nilReg *Registry
	if nilReg.Clone() != nil {
		t.Error("Clone() of nil registry != nil")
	}
}
