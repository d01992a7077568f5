package tools

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/corralhq/corral/internal/registry"
)

func TestRecoverTool_Handle_FullConfidence(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	establishFoundation(t, store, root)

	tool := NewRecoverTool(store, nil, nil)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), string(registry.RecoveryFull)) {
		t.Errorf("intact registry should recover with full confidence, got: %s", getResultText(result))
	}
}

func TestRecoverTool_Handle_RebuildsFromSources(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	establishFoundation(t, store, root)
	writeSource(t, root, "documentation/architecture.md", "# Architecture\n")

	if err := os.Remove(registry.RegistryPath(root)); err != nil {
		t.Fatalf("remove registry: %v", err)
	}

	tool := NewRecoverTool(store, []string{"documentation/architecture.md"}, nil)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if !strings.Contains(text, string(registry.RecoveryPartial)) {
		t.Errorf("context sources should yield partial confidence, got: %s", text)
	}
	if !strings.Contains(text, "**Persisted:** yes") {
		t.Errorf("recovered registry should be persisted by default, got: %s", text)
	}

	reg, err := store.Snapshot(root)
	if err != nil {
		t.Fatalf("Snapshot after recovery failed: %v", err)
	}
	if !reg.Foundation.Complete {
		t.Error("recovered foundation should be complete when sources digest cleanly")
	}
}

func TestRecoverTool_Handle_DryRun(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()

	tool := NewRecoverTool(store, nil, nil)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"persist": false,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "**Persisted:** no") {
		t.Errorf("dry run should not persist, got: %s", getResultText(result))
	}
	if _, err := os.Stat(registry.RegistryPath(root)); !os.IsNotExist(err) {
		t.Error("dry run should leave no registry file behind")
	}
}
