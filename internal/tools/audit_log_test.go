package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corralhq/corral/internal/audit"
)

func TestAuditLogTool_Handle_NilStore(t *testing.T) {
	tool := NewAuditLogTool(nil)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("disabled audit subsystem should produce an error result")
	}
	if !strings.Contains(getResultText(result), "disabled") {
		t.Errorf("error should say the subsystem is disabled, got: %s", getResultText(result))
	}
}

func TestAuditLogTool_Handle_ListsEvents(t *testing.T) {
	store, err := audit.New(filepath.Join(t.TempDir(), ".corral"))
	if err != nil {
		t.Fatalf("audit.New failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Log(audit.Event{
		Kind:     audit.KindTransition,
		SprintID: "sprint-001-demo",
		Action:   "advance",
		Decision: "ok",
	}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	store.RecordDenial("sprint-001-demo", "src/billing/invoice.go", "outside locked scope")

	tool := NewAuditLogTool(store)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "sprint-001-demo") {
		t.Error("output should include the sprint ID")
	}
	if !strings.Contains(text, "1 transitions, 1 denials") {
		t.Errorf("stats line should count both events, got: %s", text)
	}
}

func TestAuditLogTool_Handle_KindFilter(t *testing.T) {
	store, err := audit.New(filepath.Join(t.TempDir(), ".corral"))
	if err != nil {
		t.Fatalf("audit.New failed: %v", err)
	}
	defer store.Close()

	if _, err := store.Log(audit.Event{Kind: audit.KindTransition, Action: "create", Decision: "ok"}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	store.RecordDenial("", "src/a.go", "no active sprint")

	tool := NewAuditLogTool(store)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"kind": audit.KindBoundaryDenial,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "src/a.go") {
		t.Error("filtered output should include the denial")
	}
	if strings.Contains(text, "action create") {
		t.Error("filtered output should not include transitions")
	}
}
