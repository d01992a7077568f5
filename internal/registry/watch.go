package registry

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Event reports an observed change to the persisted registry file.
type Event struct {
	Path string
	Op   string // write, remove, rename
}

// Watcher observes registry.json for changes made outside this process,
// including this process's own atomic renames. Consumers re-validate the
// registry on every event; an intact file is a no-op, a corrupted one
// surfaces through the usual *CorruptionError path.
type Watcher struct {
	fw     *fsnotify.Watcher
	Events chan Event
}

// WatchRegistry starts watching the project's registry file. The state
// directory is watched rather than the file itself so events survive
// rename-based replacement.
func WatchRegistry(projectRoot string) (*Watcher, error) {
	dir := StatePath(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting registry watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &Watcher{fw: fw, Events: make(chan Event, 8)}
	go w.loop(RegistryPath(projectRoot))
	return w, nil
}

func (w *Watcher) loop(target string) {
	defer close(w.Events)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(target) {
				continue
			}
			var op string
			switch {
			case ev.Op.Has(fsnotify.Remove):
				op = "remove"
			case ev.Op.Has(fsnotify.Rename):
				op = "rename"
			case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Create):
				op = "write"
			default:
				continue
			}
			select {
			case w.Events <- Event{Path: ev.Name, Op: op}:
			default:
				// A slow consumer only needs to re-validate once; drop
				// the duplicate signal.
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("registry watcher error: %v", err)
		}
	}
}

// Close stops the watcher. The Events channel closes once the event loop
// drains.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
