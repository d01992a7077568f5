package registry

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/corralhq/corral/internal/hashengine"
	"github.com/corralhq/corral/internal/sprint"
)

func writeContextSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func corruptRegistry(t *testing.T, root string) {
	t.Helper()
	if err := os.MkdirAll(StatePath(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(RegistryPath(root), []byte(`{"version": 1, "trunc`), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReconstructFull(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	reg := New()
	reg.Foundation = Foundation{Complete: true, ContextHash: "cafe"}
	if err := fs.Save(root, reg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res := NewReconstructor(fs, nil).Reconstruct(root)
	if res.Confidence != RecoveryFull {
		t.Fatalf("Confidence = %s, want full", res.Confidence)
	}
	if len(res.Missing) != 0 {
		t.Errorf("Missing = %v, want empty", res.Missing)
	}
	if !res.Registry.Foundation.Complete {
		t.Error("full recovery altered the registry")
	}
}

func TestReconstructPartialFromContextAndHistory(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	sources := []string{"documentation/architecture.md", "documentation/requirements.md"}
	writeContextSource(t, root, sources[0], "# Architecture\n")
	writeContextSource(t, root, sources[1], "# Requirements\n")

	archived := sprint.Sprint{
		ID:            "20260110-090000-1-old",
		Phase:         sprint.PhaseEvaluation,
		Status:        sprint.StatusCompleted,
		ManifestoHash: "abc",
	}
	if err := fs.ArchiveSprint(root, archived); err != nil {
		t.Fatalf("ArchiveSprint: %v", err)
	}
	corruptRegistry(t, root)

	res := NewReconstructor(fs, sources).Reconstruct(root)
	if res.Confidence != RecoveryPartial {
		t.Fatalf("Confidence = %s, want partial", res.Confidence)
	}
	if err := res.Registry.Validate(); err != nil {
		t.Fatalf("recovered registry invalid: %v", err)
	}
	if !res.Registry.Foundation.Complete {
		t.Error("foundation not rebuilt from readable sources")
	}
	if len(res.Registry.SprintHistory) != 1 || res.Registry.SprintHistory[0].ID != archived.ID {
		t.Errorf("history = %+v, want archived sprint", res.Registry.SprintHistory)
	}
	if !slices.Contains(res.Missing, "active_sprint") {
		t.Errorf("Missing = %v, want active_sprint listed", res.Missing)
	}

	// The rebuilt hash matches a direct digest of the same sources.
	want, err := hashengine.Digest([]hashengine.File{
		{Path: sources[0], Content: []byte("# Architecture\n")},
		{Path: sources[1], Content: []byte("# Requirements\n")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Registry.GlobalContext.Hash != want {
		t.Errorf("GlobalContext.Hash = %s, want %s", res.Registry.GlobalContext.Hash, want)
	}
}

func TestReconstructPartialSkipsUnreadableSources(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	writeContextSource(t, root, "documentation/architecture.md", "# Architecture\n")
	corruptRegistry(t, root)

	sources := []string{"documentation/architecture.md", "documentation/missing.md"}
	res := NewReconstructor(fs, sources).Reconstruct(root)
	if res.Confidence != RecoveryPartial {
		t.Fatalf("Confidence = %s, want partial", res.Confidence)
	}
	got := res.Registry.GlobalContext.SourceFiles
	if len(got) != 1 || got[0] != "documentation/architecture.md" {
		t.Errorf("SourceFiles = %v, want readable subset", got)
	}
}

func TestReconstructMinimal(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()
	corruptRegistry(t, root)

	res := NewReconstructor(fs, []string{"documentation/nothing.md"}).Reconstruct(root)
	if res.Confidence != RecoveryMinimal {
		t.Fatalf("Confidence = %s, want minimal", res.Confidence)
	}
	if res.Registry.Foundation.Complete {
		t.Error("minimal recovery left foundation open")
	}
	if err := res.Registry.Validate(); err != nil {
		t.Errorf("minimal registry invalid: %v", err)
	}
	if res.Registry.ActiveSprint != nil {
		t.Error("minimal recovery fabricated an active sprint")
	}
}

func TestReconstructZeroByteRegistry(t *testing.T) {
	fs := NewFileStore()
	root := t.TempDir()

	if err := os.MkdirAll(StatePath(root), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(RegistryPath(root), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := NewReconstructor(fs, nil).Reconstruct(root)
	if res.Confidence != RecoveryMinimal {
		t.Fatalf("Confidence = %s, want minimal", res.Confidence)
	}
	if res.Registry == nil {
		t.Fatal("no registry returned")
	}
}
