package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corralhq/corral/internal/registry"
)

// writeSource creates a project-relative context source file.
func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestFoundationInitTool_Handle_Success(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	writeSource(t, root, "documentation/architecture.md", "# Architecture\n")
	writeSource(t, root, "documentation/requirements.md", "# Requirements\n")

	tool := NewFoundationInitTool(store, nil)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"sources": "documentation/architecture.md, documentation/requirements.md",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}

	reg, err := store.Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !reg.Foundation.Complete {
		t.Error("foundation should be complete")
	}
	if reg.Foundation.ContextHash == "" {
		t.Error("context hash should be recorded")
	}
	if reg.GlobalContext.Hash != reg.Foundation.ContextHash {
		t.Error("global context hash should match the foundation hash")
	}
	if len(reg.GlobalContext.SourceFiles) != 2 {
		t.Errorf("source files = %d, want 2", len(reg.GlobalContext.SourceFiles))
	}
}

func TestFoundationInitTool_Handle_UnreadableSource(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewFoundationInitTool(store, []string{"documentation/missing.md"})
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("unreadable source should produce an error result")
	}
	if !strings.Contains(getResultText(result), "missing.md") {
		t.Errorf("error should name the unreadable source: %s", getResultText(result))
	}
}

func TestFoundationInitTool_Handle_NoSources(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewFoundationInitTool(store, nil)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("no configured sources should produce an error result")
	}
}

func TestContextCheckTool_Handle_Fresh(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	writeSource(t, root, "documentation/architecture.md", "# Architecture\n")

	initTool := NewFoundationInitTool(store, []string{"documentation/architecture.md"})
	if result, err := initTool.Handle(context.Background(), toolRequest(nil)); err != nil || isErrorResult(result) {
		t.Fatalf("foundation init: err=%v result=%s", err, getResultText(result))
	}

	checkTool := NewContextCheckTool(store)
	result, err := checkTool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Context Fresh") {
		t.Errorf("unchanged sources should report fresh, got: %s", getResultText(result))
	}
}

func TestContextCheckTool_Handle_Drift(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	writeSource(t, root, "documentation/architecture.md", "# Architecture v1\n")

	initTool := NewFoundationInitTool(store, []string{"documentation/architecture.md"})
	if result, err := initTool.Handle(context.Background(), toolRequest(nil)); err != nil || isErrorResult(result) {
		t.Fatalf("foundation init: err=%v result=%s", err, getResultText(result))
	}

	writeSource(t, root, "documentation/architecture.md", "# Architecture v2\n")

	checkTool := NewContextCheckTool(store)
	result, err := checkTool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "Drift") {
		t.Errorf("edited source should report drift, got: %s", getResultText(result))
	}
}

func TestContextCheckTool_Handle_StaleSource(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	writeSource(t, root, "documentation/architecture.md", "# Architecture\n")

	initTool := NewFoundationInitTool(store, []string{"documentation/architecture.md"})
	if result, err := initTool.Handle(context.Background(), toolRequest(nil)); err != nil || isErrorResult(result) {
		t.Fatalf("foundation init: err=%v result=%s", err, getResultText(result))
	}

	if err := os.Remove(filepath.Join(root, "documentation/architecture.md")); err != nil {
		t.Fatalf("remove source: %v", err)
	}

	checkTool := NewContextCheckTool(store)
	result, err := checkTool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("deleted source should produce an error result")
	}
	if !strings.Contains(getResultText(result), "STALE") {
		t.Errorf("error should flag stale context, got: %s", getResultText(result))
	}
}

func TestContextCheckTool_Handle_NoContext(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewContextCheckTool(store)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("missing global context should produce an error result")
	}
}
