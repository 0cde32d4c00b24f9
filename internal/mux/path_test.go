package mux

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func testRoot(t *testing.T) string {
	t.Helper()
	root, err := CanonicalRoot(t.TempDir())
	if err != nil {
		t.Fatalf("CanonicalRoot: %v", err)
	}
	return root
}

func TestResolveTarget_InsideRoot(t *testing.T) {
	root := testRoot(t)
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := resolveTarget(root, "/sub/f.txt")
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if got != filepath.Join(root, "sub", "f.txt") {
		t.Errorf("resolved to %q", got)
	}

	if got, err := resolveTarget(root, "/"); err != nil || got != root {
		t.Errorf("root itself resolved to %q (err %v)", got, err)
	}
}

func TestResolveTarget_TraversalEscapes(t *testing.T) {
	root := testRoot(t)
	// The parent directory exists, so only containment can reject these.
	paths := []string{"/..", "/../", "/sub/../../", "/../" + filepath.Base(root)}
	for _, p := range paths {
		_, err := resolveTarget(root, p)
		if err == nil {
			if p == "/../"+filepath.Base(root) {
				// Traverses out and back in; lands inside the root.
				continue
			}
			t.Errorf("%s: expected an error", p)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s: expected not-exist, got %v", p, err)
		}
	}
}

func TestResolveTarget_SymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := testRoot(t)
	if err := os.Symlink(secret, filepath.Join(root, "leak")); err != nil {
		t.Fatal(err)
	}

	_, err := resolveTarget(root, "/leak")
	if err == nil {
		t.Fatal("Expected a symlink escaping the root to be rejected")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist so existence is not disclosed, got %v", err)
	}
}

func TestResolveTarget_SymlinkInsideRootAllowed(t *testing.T) {
	root := testRoot(t)
	if err := os.WriteFile(filepath.Join(root, "real.txt"), []byte("r"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias")); err != nil {
		t.Fatal(err)
	}

	got, err := resolveTarget(root, "/alias")
	if err != nil {
		t.Fatalf("resolveTarget failed: %v", err)
	}
	if got != filepath.Join(root, "real.txt") {
		t.Errorf("resolved to %q", got)
	}
}

func TestResolveTarget_Missing(t *testing.T) {
	root := testRoot(t)
	_, err := resolveTarget(root, "/nope.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist, got %v", err)
	}
}

func TestCanonicalRoot_RejectsFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CanonicalRoot(file); err == nil {
		t.Error("Expected a plain file to be rejected as root")
	}
}
