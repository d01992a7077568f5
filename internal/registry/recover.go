package registry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/corralhq/corral/internal/hashengine"
)

// Confidence grades how much of the registry a reconstruction recovered.
type Confidence string

const (
	// RecoveryFull means the persisted registry was intact; nothing was
	// rebuilt.
	RecoveryFull Confidence = "full"
	// RecoveryPartial means the registry was rebuilt from secondary
	// sources (context files, archived sprint records) with some fields
	// unrecoverable.
	RecoveryPartial Confidence = "partial"
	// RecoveryMinimal means nothing could be recovered; the project
	// restarts from a fresh registry with the foundation gate closed.
	RecoveryMinimal Confidence = "minimal"
)

// Result is the outcome of a reconstruction attempt.
type Result struct {
	Registry   *Registry  `json:"registry"`
	Confidence Confidence `json:"confidence"`
	// Missing names the registry fields that could not be recovered.
	Missing []string `json:"missing,omitempty"`
}

// Reconstructor rebuilds a usable registry after corruption or loss.
// It degrades through confidence levels instead of failing: every call
// returns a valid registry.
type Reconstructor struct {
	store          Store
	contextSources []string
}

// NewReconstructor creates a Reconstructor. contextSources are the
// project-relative files whose digest backs Foundation and GlobalContext.
func NewReconstructor(store Store, contextSources []string) *Reconstructor {
	return &Reconstructor{store: store, contextSources: contextSources}
}

// Reconstruct attempts recovery for the given project root. An intact
// registry is returned unchanged at full confidence. Otherwise the
// foundation and global context are rebuilt from readable context
// sources and sprint history from archived records, yielding partial
// confidence, or a fresh locked-down registry at minimal confidence.
// The result is not persisted; callers decide whether to save it.
func (r *Reconstructor) Reconstruct(projectRoot string) Result {
	if _, statErr := os.Stat(RegistryPath(projectRoot)); statErr == nil {
		if reg, err := r.store.Load(projectRoot); err == nil {
			return Result{Registry: reg, Confidence: RecoveryFull}
		}
	}

	reg := New()
	missing := []string{"active_sprint", "planning_checklist", "applied_requests"}
	recovered := false

	if hash, sources, ok := r.digestContextSources(projectRoot); ok {
		now := timeNow().UTC().Format(time.RFC3339)
		reg.Foundation = Foundation{Complete: true, ContextHash: hash}
		reg.GlobalContext = GlobalContext{Hash: hash, SourceFiles: sources, LastUpdated: now}
		recovered = true
	} else {
		missing = append(missing, "foundation", "global_context")
	}

	if history, err := r.store.LoadHistoryRecords(projectRoot); err == nil && len(history) > 0 {
		reg.SprintHistory = history
		reg.SprintCounter = len(history)
		recovered = true
	} else {
		missing = append(missing, "sprint_history")
	}

	if !recovered {
		return Result{Registry: New(), Confidence: RecoveryMinimal, Missing: missing}
	}
	return Result{Registry: reg, Confidence: RecoveryPartial, Missing: missing}
}

// digestContextSources hashes the readable subset of the configured
// context sources, keyed by project-relative path so the digest is
// stable across machines. Recovery is best-effort: unreadable sources
// are dropped rather than failing the digest.
func (r *Reconstructor) digestContextSources(projectRoot string) (hash string, sources []string, ok bool) {
	var files []hashengine.File
	for _, rel := range r.contextSources {
		content, err := os.ReadFile(filepath.Join(projectRoot, rel))
		if err != nil {
			continue
		}
		files = append(files, hashengine.File{Path: rel, Content: content})
		sources = append(sources, rel)
	}
	if len(files) == 0 {
		return "", nil, false
	}
	digest, err := hashengine.Digest(files)
	if err != nil {
		return "", nil, false
	}
	return digest, sources, true
}
