package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestScanFindsDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "walden.md", "# Walden\n\nI went to the woods.")
	writeDoc(t, dir, "notes.txt", "plain text")
	writeDoc(t, dir, "essays/self_reliance.md", "Trust thyself.")
	writeDoc(t, dir, "ignore.pdf", "%PDF")
	writeDoc(t, dir, ".hidden.md", "# Hidden")
	writeDoc(t, dir, ".obsidian/cache.md", "# Cache")

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3: %+v", len(entries), entries)
	}

	byTitle := map[string]protocol.CatalogEntry{}
	for _, e := range entries {
		byTitle[e.Title] = e
	}
	if e, ok := byTitle["Walden"]; !ok || e.Format != protocol.FormatMarkdown {
		t.Fatalf("walden entry = %+v", e)
	}
	if e, ok := byTitle["notes"]; !ok || e.Format != protocol.FormatText {
		t.Fatalf("notes entry = %+v", e)
	}
	if _, ok := byTitle["self reliance"]; !ok {
		t.Fatalf("nested entry missing: %v", byTitle)
	}
}

func TestScanSortsByTitle(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "zebra.txt", "z")
	writeDoc(t, dir, "alpha.txt", "a")
	writeDoc(t, dir, "Middle.txt", "m")

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	got := []string{entries[0].Title, entries[1].Title, entries[2].Title}
	want := []string{"alpha", "Middle", "zebra"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAuthorTitleSplit(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "Henry David Thoreau - Walden.txt", "text")

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Author != "Henry David Thoreau" {
		t.Fatalf("author = %q", entries[0].Author)
	}
	if entries[0].Title != "Walden" {
		t.Fatalf("title = %q", entries[0].Title)
	}
}

func TestHeadingOverridesFilename(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "draft_v2.md", "\n# The Pond in Winter\n\nbody")

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if entries[0].Title != "The Pond in Winter" {
		t.Fatalf("title = %q", entries[0].Title)
	}
}

func TestEntryIDStableAcrossScans(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "walden.md", "# Walden")

	first, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := Scan(dir)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if first[0].ID == "" || first[0].ID != second[0].ID {
		t.Fatalf("ids differ across scans: %q vs %q", first[0].ID, second[0].ID)
	}
}

func TestScanEmptyDir(t *testing.T) {
	entries, err := Scan(t.TempDir())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %+v, want none", entries)
	}
}
