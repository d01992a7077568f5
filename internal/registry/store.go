package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corralhq/corral/internal/sprint"
)

const (
	// StateDir is the per-project state directory.
	StateDir = ".corral"
	// RegistryFile is the filename of the persisted registry.
	RegistryFile = "registry.json"
	// HistoryDir is the subdirectory holding archived sprint records.
	HistoryDir = "history"
)

// StatePath returns the absolute path to the .corral/ directory.
func StatePath(projectRoot string) string {
	return filepath.Join(projectRoot, StateDir)
}

// RegistryPath returns the absolute path to registry.json.
func RegistryPath(projectRoot string) string {
	return filepath.Join(StatePath(projectRoot), RegistryFile)
}

// HistoryPath returns the absolute path to the .corral/history/ directory.
func HistoryPath(projectRoot string) string {
	return filepath.Join(StatePath(projectRoot), HistoryDir)
}

// Store defines the persistence interface for the registry.
// Abstracted for testability (DIP).
type Store interface {
	Load(projectRoot string) (*Registry, error)
	Save(projectRoot string, reg *Registry) error
	Mutate(projectRoot string, fn func(*Registry) error) (*Registry, error)
	Snapshot(projectRoot string) (*Registry, error)
	ArchiveSprint(projectRoot string, s sprint.Sprint) error
	LoadHistoryRecords(projectRoot string) ([]sprint.Sprint, error)
}

// FileStore implements Store using the local filesystem. All mutations
// run under a process-wide writer mutex; every save is atomic
// (temp file, fsync, rename, directory fsync).
type FileStore struct {
	mu sync.Mutex
	// retries bounds re-attempts of transient write failures.
	retries int
}

// NewFileStore creates a filesystem-backed registry store.
func NewFileStore() *FileStore {
	return &FileStore{retries: 3}
}

// SetRetries overrides the persist retry budget. Values below 1 are
// clamped to 1.
func (fs *FileStore) SetRetries(n int) {
	if n < 1 {
		n = 1
	}
	fs.retries = n
}

// Load reads and validates the registry. A missing file yields a fresh
// registry (new project). A present but unreadable, unparsable, or
// invalid file yields a *CorruptionError, never an empty registry.
func (fs *FileStore) Load(projectRoot string) (*Registry, error) {
	path := RegistryPath(projectRoot)
	reg := &Registry{}
	if err := readJSONStrict(path, reg); err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, &CorruptionError{Path: path, Err: err}
	}
	if err := reg.Validate(); err != nil {
		return nil, &CorruptionError{Path: path, Err: err}
	}
	return reg, nil
}

// Save validates and persists the registry atomically. Transient I/O
// failures are retried up to the retry budget; exhaustion is reported
// as a *CorruptionError so callers know disk state is suspect.
func (fs *FileStore) Save(projectRoot string, reg *Registry) error {
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid registry: %w", err)
	}
	reg.UpdatedAt = timeNow().UTC().Format(time.RFC3339)

	data, err := jsonMarshalStable(reg)
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	path := RegistryPath(projectRoot)
	var lastErr error
	for attempt := 0; attempt < fs.retries; attempt++ {
		lastErr = writeFileAtomicDurable(path, data, 0o644)
		if lastErr == nil {
			return nil
		}
	}
	return &CorruptionError{Path: path, Err: fmt.Errorf("persist failed after %d attempts: %w", fs.retries, lastErr)}
}

// Mutate loads the registry, applies fn, and saves the result, all under
// the writer mutex. fn returning an error aborts with no state change.
// The returned registry is a deep copy safe for the caller to keep.
func (fs *FileStore) Mutate(projectRoot string, fn func(*Registry) error) (*Registry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	reg, err := fs.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	if err := fn(reg); err != nil {
		return nil, err
	}
	if err := fs.Save(projectRoot, reg); err != nil {
		return nil, err
	}
	return reg.Clone(), nil
}

// Snapshot returns a deep copy of the current registry. Readers never
// observe a partial write: loads go through the same mutex as mutations
// and the on-disk file is only ever replaced by rename.
func (fs *FileStore) Snapshot(projectRoot string) (*Registry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	reg, err := fs.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	return reg.Clone(), nil
}

// ArchiveSprint writes a terminal sprint record to
// .corral/history/<id>.json so Partial recovery can rebuild history
// after registry loss.
func (fs *FileStore) ArchiveSprint(projectRoot string, s sprint.Sprint) error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("cannot archive sprint with empty id")
	}
	if !s.Status.Terminal() {
		return fmt.Errorf("cannot archive sprint %q with non-terminal status %s", s.ID, s.Status)
	}
	data, err := jsonMarshalStable(&s)
	if err != nil {
		return fmt.Errorf("marshaling sprint record: %w", err)
	}
	path := filepath.Join(HistoryPath(projectRoot), s.ID+".json")
	if err := writeFileAtomicDurable(path, data, 0o644); err != nil {
		return fmt.Errorf("archiving sprint %q: %w", s.ID, err)
	}
	return nil
}

// LoadHistoryRecords reads every archived sprint record, skipping
// unreadable files. Results are sorted by sprint ID, which orders them
// chronologically given the timestamp prefix.
func (fs *FileStore) LoadHistoryRecords(projectRoot string) ([]sprint.Sprint, error) {
	dir := HistoryPath(projectRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	var out []sprint.Sprint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var s sprint.Sprint
		if err := readJSONStrict(filepath.Join(dir, entry.Name()), &s); err != nil {
			continue // skip unreadable records
		}
		if s.Validate() != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing junk.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
