// Package hashengine computes deterministic digests over named sets of
// source documents. The digest detects staleness of the shared project
// context: it changes if and only if any file's content changes or the
// set's membership changes, regardless of enumeration order.
package hashengine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
)

// File is one member of a digest input set.
type File struct {
	Path    string
	Content []byte
}

// Comparison is the result of comparing two digests.
type Comparison string

const (
	Equal   Comparison = "equal"
	Changed Comparison = "changed"
)

// StaleContextError reports that a context source file could not be read.
// Unreadable sources are never treated as "unchanged" — the caller must
// decide how to proceed.
type StaleContextError struct {
	Path string
	Err  error
}

func (e *StaleContextError) Error() string {
	return fmt.Sprintf("context source %q unreadable: %v", e.Path, e.Err)
}

func (e *StaleContextError) Unwrap() error {
	return e.Err
}

// Digest computes a two-level digest over the file set: each file's content
// is hashed independently, the per-file digests are sorted lexicographically
// by path, and the sorted (path, digest) pairs are hashed together. The
// result is independent of the order files are supplied in.
//
// Duplicate paths are rejected — a set with ambiguous membership has no
// well-defined digest.
func Digest(files []File) (string, error) {
	type entry struct {
		path   string
		digest [sha256.Size]byte
	}

	entries := make([]entry, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if seen[f.Path] {
			return "", fmt.Errorf("duplicate path %q in digest input", f.Path)
		}
		seen[f.Path] = true
		entries = append(entries, entry{path: f.Path, digest: sha256.Sum256(f.Content)})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].path < entries[j].path
	})

	outer := sha256.New()
	for _, e := range entries {
		// Separator byte keeps path/digest boundaries unambiguous.
		outer.Write([]byte(e.path))
		outer.Write([]byte{0})
		outer.Write(e.digest[:])
	}
	return hex.EncodeToString(outer.Sum(nil)), nil
}

// DigestPaths reads each path from disk and digests the resulting set.
// Any unreadable path surfaces as *StaleContextError.
func DigestPaths(paths []string) (string, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", &StaleContextError{Path: p, Err: err}
		}
		files = append(files, File{Path: p, Content: data})
	}
	return Digest(files)
}

// DigestStrings digests a set of pre-rendered named documents. Used for
// manifesto hashing, where the "files" are in-memory snapshots rather
// than on-disk sources.
func DigestStrings(docs map[string]string) (string, error) {
	files := make([]File, 0, len(docs))
	for name, content := range docs {
		files = append(files, File{Path: name, Content: []byte(content)})
	}
	return Digest(files)
}

// Compare reports whether two digests refer to the same context state.
func Compare(a, b string) Comparison {
	if a == b {
		return Equal
	}
	return Changed
}
