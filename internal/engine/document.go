package engine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/library"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// basePageBudget is the sentences shown per page at default settings; font
// scale, line spacing and margins shrink it.
const basePageBudget = 28.0

// minPageSentences keeps pages readable under extreme settings.
const minPageSentences = 4

// document is one open resource with its segmentation and pagination.
type document struct {
	id       string
	title    string
	author   string
	path     string
	markdown bool

	sentences  []string
	words      []int
	totalWords int

	// pageStart[i] is the document-wide ordinal of page i's first
	// sentence; pages run [pageStart[i], pageStart[i+1]).
	pageStart []int
	page      int

	highlight *int
	textOnly  bool
	search    protocol.SearchState
	settings  protocol.Settings
}

// loadDocument reads and segments a file from the library.
func loadDocument(path string, settings protocol.Settings) (*document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, protocol.Errf(protocol.CodeInvalid, "bad path %q: %v", path, err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, protocol.Errf(protocol.CodeNotFound, "no such document: %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	title, author := docTitleAuthor(abs, string(raw), ext)
	doc := newDocument(library.EntryID(abs), title, string(raw), settings)
	doc.author = author
	doc.path = abs
	doc.markdown = ext == ".md" || ext == ".markdown"
	return doc, nil
}

// textDocument builds a document from pasted text. The id is derived from
// the content, so re-opening the same text resumes its recents row.
func textDocument(title, text string, settings protocol.Settings) (*document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, protocol.Errf(protocol.CodeInvalid, "empty text")
	}
	if title == "" {
		title = "Pasted text"
	}
	doc := newDocument(library.TextID(text), title, text, settings)
	doc.markdown = looksLikeMarkdown(text)
	return doc, nil
}

func newDocument(id, title, text string, settings protocol.Settings) *document {
	sentences := splitSentences(text)
	words := make([]int, len(sentences))
	total := 0
	for i, s := range sentences {
		words[i] = countWords(s)
		total += words[i]
	}
	doc := &document{
		id:         id,
		title:      title,
		sentences:  sentences,
		words:      words,
		totalWords: total,
		settings:   settings,
		search:     protocol.SearchState{Active: -1},
	}
	doc.paginate(0)
	return doc
}

func docTitleAuthor(path, raw, ext string) (string, string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ReplaceAll(base, "_", " ")
	title := base
	author := ""
	if i := strings.Index(base, " - "); i > 0 {
		author = strings.TrimSpace(base[:i])
		title = strings.TrimSpace(base[i+3:])
	}
	if ext == ".md" || ext == ".markdown" {
		for _, line := range strings.SplitN(raw, "\n", 12) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "# ") {
				title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			}
			break
		}
	}
	return title, author
}

func looksLikeMarkdown(text string) bool {
	for _, line := range strings.SplitN(text, "\n", 40) {
		trimmed := strings.TrimSpace(line)
		if isHeading(trimmed) || strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "```") {
			return true
		}
	}
	return false
}

// pageBudget derives sentences per page from the layout settings.
func pageBudget(s protocol.Settings) int {
	scale := s.FontScale
	if scale <= 0 {
		scale = 1
	}
	spacing := s.LineSpacing
	if spacing <= 0 {
		spacing = 1
	}
	budget := int(math.Round(basePageBudget/(scale*spacing))) - s.MarginWidth/6
	if budget < minPageSentences {
		budget = minPageSentences
	}
	return budget
}

// paginate rebuilds page boundaries and positions the view on the page
// containing the sentence ordinal keep.
func (d *document) paginate(keep int) {
	budget := pageBudget(d.settings)
	d.pageStart = d.pageStart[:0]
	for start := 0; start < len(d.sentences); start += budget {
		d.pageStart = append(d.pageStart, start)
	}
	if len(d.pageStart) == 0 {
		d.pageStart = []int{0}
	}
	d.page = d.pageFor(keep)
}

// pageFor returns the page containing the document-wide sentence ordinal.
func (d *document) pageFor(ordinal int) int {
	if ordinal <= 0 {
		return 0
	}
	for i := len(d.pageStart) - 1; i >= 0; i-- {
		if d.pageStart[i] <= ordinal {
			return i
		}
	}
	return 0
}

func (d *document) pageCount() int {
	return len(d.pageStart)
}

// pageBounds returns the sentence ordinals [start, end) of page i.
func (d *document) pageBounds(i int) (int, int) {
	if i < 0 || i >= len(d.pageStart) {
		return 0, 0
	}
	start := d.pageStart[i]
	end := len(d.sentences)
	if i+1 < len(d.pageStart) {
		end = d.pageStart[i+1]
	}
	return start, end
}

// ordinal returns the document-wide position of the current highlight, or
// the page start when nothing is highlighted.
func (d *document) ordinal() int {
	start, _ := d.pageBounds(d.page)
	if d.highlight == nil {
		return start
	}
	return start + *d.highlight
}

// setPage clamps and switches pages, dropping the page-local highlight.
func (d *document) setPage(page int) {
	if page < 0 {
		page = 0
	}
	if page >= d.pageCount() {
		page = d.pageCount() - 1
	}
	if page != d.page {
		d.page = page
		d.highlight = nil
	}
}

// jumpTo positions the view on the page holding ordinal and highlights it.
func (d *document) jumpTo(ordinal int) {
	if ordinal < 0 {
		ordinal = 0
	}
	if ordinal >= len(d.sentences) && len(d.sentences) > 0 {
		ordinal = len(d.sentences) - 1
	}
	d.page = d.pageFor(ordinal)
	start, _ := d.pageBounds(d.page)
	local := ordinal - start
	d.highlight = &local
}

// pageSentences returns the sentence texts of the current page.
func (d *document) pageSentences() []string {
	start, end := d.pageBounds(d.page)
	return d.sentences[start:end]
}

// pageWords counts words on the current page.
func (d *document) pageWords() int {
	start, end := d.pageBounds(d.page)
	n := 0
	for _, w := range d.words[start:end] {
		n += w
	}
	return n
}

// wordsBefore counts words in sentences strictly before ordinal.
func (d *document) wordsBefore(ordinal int) int {
	if ordinal > len(d.words) {
		ordinal = len(d.words)
	}
	n := 0
	for _, w := range d.words[:ordinal] {
		n += w
	}
	return n
}

// recentEntry snapshots the document for the recents store. Caller holds
// the engine lock.
func (d *document) recentEntry() protocol.RecentEntry {
	return protocol.RecentEntry{
		ResourceID: d.id,
		Title:      d.title,
		Path:       d.path,
		LastPage:   d.page,
		PageCount:  d.pageCount(),
		OpenedAt:   time.Now(),
	}
}
