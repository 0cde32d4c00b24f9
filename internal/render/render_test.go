package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	page, err := Directory("files/", dir, false)
	if err != nil {
		t.Fatalf("Directory failed: %v", err)
	}
	if !strings.Contains(page, `<a href="b.txt">b.txt</a>`) {
		t.Errorf("Expected file link, got %q", page)
	}
	if !strings.Contains(page, `<a href="sub/">sub/</a>`) {
		t.Errorf("Expected slash-suffixed directory link, got %q", page)
	}
	if !strings.Contains(page, `<a href="..">..</a>`) {
		t.Errorf("Expected parent link for non-root path, got %q", page)
	}
	if strings.Contains(page, "<form") {
		t.Error("Expected no upload form when uploading is disabled")
	}
}

func TestDirectory_RootHasNoParentLink(t *testing.T) {
	page, err := Directory("", t.TempDir(), false)
	if err != nil {
		t.Fatalf("Directory failed: %v", err)
	}
	if strings.Contains(page, `<a href="..">`) {
		t.Error("Expected no parent link at the root")
	}
}

func TestDirectory_UploadForm(t *testing.T) {
	page, err := Directory("", t.TempDir(), true)
	if err != nil {
		t.Fatalf("Directory failed: %v", err)
	}
	if !strings.Contains(page, `enctype="multipart/form-data"`) {
		t.Errorf("Expected multipart upload form, got %q", page)
	}
}

func TestDirectory_EscapesNames(t *testing.T) {
	dir := t.TempDir()
	name := "<script>.txt"
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	page, err := Directory("", dir, false)
	if err != nil {
		t.Fatalf("Directory failed: %v", err)
	}
	if strings.Contains(page, "<script>") {
		t.Errorf("Expected escaped entry name, got %q", page)
	}
	if !strings.Contains(page, "&lt;script&gt;.txt") {
		t.Errorf("Expected HTML-escaped name, got %q", page)
	}
}

func TestStatusPage(t *testing.T) {
	page := StatusPage(404, "no such file")
	if !strings.Contains(page, "404 Not Found") {
		t.Errorf("Expected status heading, got %q", page)
	}
	if !strings.Contains(page, "no such file") {
		t.Errorf("Expected detail text, got %q", page)
	}
}
