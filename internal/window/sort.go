package window

import (
	"sort"
	"strings"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// SortMode orders the catalog listing.
type SortMode int

const (
	SortTitle SortMode = iota
	SortAuthor
	SortRecent
	SortSize
)

var sortModeNames = [...]string{"title", "author", "recent", "size"}

func (m SortMode) String() string {
	if m < 0 || int(m) >= len(sortModeNames) {
		return "title"
	}
	return sortModeNames[m]
}

// Next cycles to the following sort mode.
func (m SortMode) Next() SortMode {
	return (m + 1) % SortMode(len(sortModeNames))
}

// SortEntries stable-sorts entries in place by mode, breaking ties by title
// so equal keys keep a deterministic order across refreshes.
func SortEntries(entries []protocol.CatalogEntry, mode SortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch mode {
		case SortAuthor:
			if !strings.EqualFold(a.Author, b.Author) {
				return lessFold(a.Author, b.Author)
			}
		case SortRecent:
			if !a.AddedAt.Equal(b.AddedAt) {
				return a.AddedAt.After(b.AddedAt)
			}
		case SortSize:
			if a.SizeBytes != b.SizeBytes {
				return a.SizeBytes > b.SizeBytes
			}
		}
		return lessFold(a.Title, b.Title)
	})
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// FilterEntries returns the entries whose title or author contains query,
// case-insensitively. A blank query returns the input unchanged.
func FilterEntries(entries []protocol.CatalogEntry, query string) []protocol.CatalogEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}
	var out []protocol.CatalogEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Author), q) {
			out = append(out, e)
		}
	}
	return out
}
