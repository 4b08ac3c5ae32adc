// Package library owns the on-disk side of the reading catalog: scanning a
// directory tree for documents, watching it for changes, and persisting the
// recently-opened list in sqlite.
package library

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// EntryID derives the stable catalog id for a document path. The same path
// always yields the same id, so rescans, recents rows and open resources
// all agree on identity.
func EntryID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// TextID derives a stable resource id for pasted text from its content, so
// opening the same text twice resumes the same recents row.
func TextID(text string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("text://"+text)).String()
}

// Scan walks dir and returns a catalog entry per readable document, sorted
// by title. Hidden files and directories are skipped.
func Scan(dir string) ([]protocol.CatalogEntry, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var entries []protocol.CatalogEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A vanished or unreadable subtree should not sink the scan.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		format, ok := formatFor(name)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		title, author := titleAuthor(path, format)
		entries = append(entries, protocol.CatalogEntry{
			ID:        EntryID(path),
			Title:     title,
			Author:    author,
			Path:      path,
			Format:    format,
			SizeBytes: info.Size(),
			AddedAt:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, tj := strings.ToLower(entries[i].Title), strings.ToLower(entries[j].Title)
		if ti != tj {
			return ti < tj
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

func formatFor(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return protocol.FormatMarkdown, true
	case ".txt":
		return protocol.FormatText, true
	}
	return "", false
}

// titleAuthor derives display metadata. "Author - Title.md" filenames split
// into both parts; a leading "# " heading in markdown overrides the title.
func titleAuthor(path, format string) (string, string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ReplaceAll(base, "_", " ")

	title := base
	author := ""
	if i := strings.Index(base, " - "); i > 0 {
		author = strings.TrimSpace(base[:i])
		title = strings.TrimSpace(base[i+3:])
	}

	if format == protocol.FormatMarkdown {
		if h := firstHeading(path); h != "" {
			title = h
		}
	}
	if title == "" {
		title = base
	}
	return title, author
}

// firstHeading returns the text of a leading h1, looking only at the first
// few lines so scans stay cheap on large files.
func firstHeading(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for lines := 0; sc.Scan() && lines < 10; lines++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
		return ""
	}
	return ""
}
