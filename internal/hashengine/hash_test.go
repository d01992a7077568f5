package hashengine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testFiles() []File {
	return []File{
		{Path: "documentation/vision.md", Content: []byte("# Vision\nBuild it right.")},
		{Path: "documentation/architecture.md", Content: []byte("# Architecture\nLayers.")},
		{Path: "README.md", Content: []byte("readme body")},
	}
}

// --- Digest ---

func TestDigest_OrderIndependent(t *testing.T) {
	files := testFiles()
	base, err := Digest(files)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	for _, perm := range permutations {
		shuffled := make([]File, len(files))
		for i, idx := range perm {
			shuffled[i] = files[idx]
		}
		got, err := Digest(shuffled)
		if err != nil {
			t.Fatalf("Digest(perm %v): %v", perm, err)
		}
		if got != base {
			t.Errorf("Digest(perm %v) = %s, want %s", perm, got, base)
		}
	}
}

func TestDigest_SingleByteSensitivity(t *testing.T) {
	files := testFiles()
	base, err := Digest(files)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	mutated := testFiles()
	mutated[1].Content[0] = '*'
	got, err := Digest(mutated)
	if err != nil {
		t.Fatalf("Digest(mutated): %v", err)
	}
	if got == base {
		t.Error("digest unchanged after single-byte content mutation")
	}
}

func TestDigest_MembershipSensitivity(t *testing.T) {
	files := testFiles()
	base, err := Digest(files)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	smaller, err := Digest(files[:2])
	if err != nil {
		t.Fatalf("Digest(smaller): %v", err)
	}
	if smaller == base {
		t.Error("digest unchanged after removing a member")
	}

	larger, err := Digest(append(testFiles(), File{Path: "extra.md", Content: []byte("x")}))
	if err != nil {
		t.Fatalf("Digest(larger): %v", err)
	}
	if larger == base {
		t.Error("digest unchanged after adding a member")
	}
}

func TestDigest_EmptySet(t *testing.T) {
	a, err := Digest(nil)
	if err != nil {
		t.Fatalf("Digest(nil): %v", err)
	}
	b, err := Digest([]File{})
	if err != nil {
		t.Fatalf("Digest(empty): %v", err)
	}
	if a != b {
		t.Errorf("empty-set digests differ: %s vs %s", a, b)
	}
}

func TestDigest_DuplicatePathRejected(t *testing.T) {
	files := []File{
		{Path: "a.md", Content: []byte("one")},
		{Path: "a.md", Content: []byte("two")},
	}
	if _, err := Digest(files); err == nil {
		t.Error("expected error for duplicate path, got nil")
	}
}

func TestDigest_PathRename(t *testing.T) {
	a, _ := Digest([]File{{Path: "a.md", Content: []byte("same")}})
	b, _ := Digest([]File{{Path: "b.md", Content: []byte("same")}})
	if a == b {
		t.Error("digest unchanged after renaming a member")
	}
}

// --- DigestPaths ---

func TestDigestPaths_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.md")
	p2 := filepath.Join(dir, "two.md")
	if err := os.WriteFile(p1, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p2, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	forward, err := DigestPaths([]string{p1, p2})
	if err != nil {
		t.Fatalf("DigestPaths: %v", err)
	}
	reverse, err := DigestPaths([]string{p2, p1})
	if err != nil {
		t.Fatalf("DigestPaths(reversed): %v", err)
	}
	if forward != reverse {
		t.Error("DigestPaths depends on enumeration order")
	}

	want, err := Digest([]File{
		{Path: p1, Content: []byte("first")},
		{Path: p2, Content: []byte("second")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if forward != want {
		t.Errorf("DigestPaths = %s, want %s", forward, want)
	}
}

func TestDigestPaths_UnreadableIsStaleContext(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.md")
	_, err := DigestPaths([]string{missing})
	if err == nil {
		t.Fatal("expected error for missing source, got nil")
	}
	var stale *StaleContextError
	if !errors.As(err, &stale) {
		t.Fatalf("expected *StaleContextError, got %T: %v", err, err)
	}
	if stale.Path != missing {
		t.Errorf("StaleContextError.Path = %s, want %s", stale.Path, missing)
	}
}

// --- Compare ---

func TestCompare(t *testing.T) {
	if got := Compare("abc", "abc"); got != Equal {
		t.Errorf("Compare(equal) = %s, want %s", got, Equal)
	}
	if got := Compare("abc", "abd"); got != Changed {
		t.Errorf("Compare(different) = %s, want %s", got, Changed)
	}
}

// --- DigestStrings ---

func TestDigestStrings_MatchesDigest(t *testing.T) {
	docs := map[string]string{
		"locked-paths": "src/auth/*\nsrc/session.go",
		"gates":        "scope_defined:passed",
	}
	got, err := DigestStrings(docs)
	if err != nil {
		t.Fatalf("DigestStrings: %v", err)
	}
	want, err := Digest([]File{
		{Path: "gates", Content: []byte("scope_defined:passed")},
		{Path: "locked-paths", Content: []byte("src/auth/*\nsrc/session.go")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("DigestStrings = %s, want %s", got, want)
	}
}
