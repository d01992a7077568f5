package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/corralhq/corral/internal/boundary"
	"github.com/corralhq/corral/internal/registry"
)

func TestBoundaryCheckTool_ReadAlwaysAllowed(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewBoundaryCheckTool(store, boundary.NewGuard(nil))
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"operation": "read",
		"path":      "anything/at/all.go",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("read should always be allowed, got: %s", getResultText(result))
	}
}

func TestBoundaryCheckTool_WriteDeniedWithoutSprint(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewBoundaryCheckTool(store, boundary.NewGuard(nil))
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"operation": "write",
		"path":      "src/main.go",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("write without an executing sprint should be denied")
	}
	if !strings.Contains(getResultText(result), "DENIED") {
		t.Errorf("denial should be explicit, got: %s", getResultText(result))
	}
}

func TestBoundaryCheckTool_WriteScopedToManifesto(t *testing.T) {
	root := setupProject(t)
	store := registry.NewFileStore()
	establishFoundation(t, store, root)
	passAllGates(t, store, root)
	machine := newToolMachine(store)
	startLockedSprint(t, machine, root, "src/auth/*")

	tool := NewBoundaryCheckTool(store, boundary.NewGuard(nil))

	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"operation": "write",
		"path":      "src/auth/token.go",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("in-scope write should be allowed, got: %s", getResultText(result))
	}

	result, err = tool.Handle(context.Background(), toolRequest(map[string]any{
		"operation": "delete",
		"path":      "src/billing/invoice.go",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("out-of-scope delete should be denied")
	}
}

func TestBoundaryCheckTool_InvalidOperation(t *testing.T) {
	setupProject(t)
	store := registry.NewFileStore()

	tool := NewBoundaryCheckTool(store, boundary.NewGuard(nil))
	result, err := tool.Handle(context.Background(), toolRequest(map[string]any{
		"operation": "execute",
		"path":      "src/main.go",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("unknown operation kind should be denied")
	}
}
