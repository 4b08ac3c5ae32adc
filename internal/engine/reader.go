package engine

import (
	"context"
	"strings"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// viewLocked assembles the authoritative reader view. Caller holds e.mu and
// has checked e.doc.
func (e *Engine) viewLocked() protocol.ReaderView {
	d := e.doc
	start, _ := d.pageBounds(d.page)
	view := protocol.ReaderView{
		ResourceID:     d.id,
		Title:          d.title,
		Path:           d.path,
		Markdown:       d.markdown,
		Page:           d.page,
		PageCount:      d.pageCount(),
		Sentences:      append([]string(nil), d.pageSentences()...),
		SentenceBase:   start,
		TotalSentences: len(d.sentences),
		TextOnly:       d.textOnly,
		Search:         d.search,
		Settings:       d.settings,
		Stats:          e.statsLocked(),
		Playback:       e.narrator.stateLocked(),
		Panels:         e.session.Panels,
	}
	if len(d.search.Matches) > 0 {
		view.Search.Matches = append([]int(nil), d.search.Matches...)
	}
	if d.highlight != nil {
		h := *d.highlight
		view.Highlight = &h
	}
	return view
}

// readerOp runs one mutation against the open document, records reading
// progress, announces the new view and returns it.
func (e *Engine) readerOp(fn func(d *document) error) (protocol.ReaderView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return protocol.ReaderView{}, protocol.Errf(protocol.CodeConflict, "no document open")
	}
	prevPage := e.doc.page
	if err := fn(e.doc); err != nil {
		return protocol.ReaderView{}, err
	}
	e.markProgressLocked()
	view := e.viewLocked()
	e.emitLocked(protocol.ChannelReader, protocol.ReaderEvent{Reader: view})
	if e.doc.page != prevPage {
		go e.saveRecent(context.Background(), e.doc.recentEntry())
	}
	return view, nil
}

// markProgressLocked folds the current position into the session's reading
// statistics.
func (e *Engine) markProgressLocked() {
	d := e.doc
	e.visited[d.page] = true
	if ord := d.ordinal(); ord > e.furthest {
		e.furthest = ord
	}
}

// NextPage advances one page.
func (e *Engine) NextPage(ctx context.Context) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		d.setPage(d.page + 1)
		return nil
	})
}

// PrevPage goes back one page.
func (e *Engine) PrevPage(ctx context.Context) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		d.setPage(d.page - 1)
		return nil
	})
}

// SetPage jumps to a page, clamped to the document.
func (e *Engine) SetPage(ctx context.Context, page int) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		d.setPage(page)
		return nil
	})
}

// NextSentence advances the highlight, crossing into the next page at a
// boundary.
func (e *Engine) NextSentence(ctx context.Context) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		if len(d.sentences) == 0 {
			return nil
		}
		if d.highlight == nil {
			start, _ := d.pageBounds(d.page)
			d.jumpTo(start)
			return nil
		}
		d.jumpTo(d.ordinal() + 1)
		return nil
	})
}

// PrevSentence moves the highlight back, crossing into the previous page at
// a boundary.
func (e *Engine) PrevSentence(ctx context.Context) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		if len(d.sentences) == 0 {
			return nil
		}
		if d.highlight == nil {
			start, _ := d.pageBounds(d.page)
			d.jumpTo(start)
			return nil
		}
		d.jumpTo(d.ordinal() - 1)
		return nil
	})
}

// SelectSentence highlights a sentence by its index on the current page.
func (e *Engine) SelectSentence(ctx context.Context, index int) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		start, end := d.pageBounds(d.page)
		if index < 0 || start+index >= end {
			return protocol.Errf(protocol.CodeInvalid, "sentence %d out of range", index)
		}
		local := index
		d.highlight = &local
		return nil
	})
}

// ToggleTextOnly flips between rendered and plain presentation.
func (e *Engine) ToggleTextOnly(ctx context.Context) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		d.textOnly = !d.textOnly
		return nil
	})
}

// ApplySettings patches the reader settings, repaginating around the
// current position when layout inputs change.
func (e *Engine) ApplySettings(ctx context.Context, patch protocol.SettingsPatch) (protocol.ReaderView, error) {
	if patch.SpeechVoice != nil && !e.knownVoice(*patch.SpeechVoice) {
		return protocol.ReaderView{}, protocol.Errf(protocol.CodeInvalid, "unknown voice %q", *patch.SpeechVoice)
	}
	if patch.FontScale != nil && (*patch.FontScale < 0.5 || *patch.FontScale > 3) {
		return protocol.ReaderView{}, protocol.Errf(protocol.CodeInvalid, "font scale %v out of range", *patch.FontScale)
	}
	if patch.SpeechRate != nil && (*patch.SpeechRate < 0.25 || *patch.SpeechRate > 4) {
		return protocol.ReaderView{}, protocol.Errf(protocol.CodeInvalid, "speech rate %v out of range", *patch.SpeechRate)
	}
	return e.readerOp(func(d *document) error {
		keep := d.ordinal()
		before := d.settings
		d.settings = patch.Apply(d.settings)
		e.settings = d.settings
		if layoutChanged(before, d.settings) {
			d.paginate(keep)
		}
		if before.SpeechRate != d.settings.SpeechRate || before.SpeechVoice != d.settings.SpeechVoice {
			e.narrator.rescheduleLocked()
		}
		return nil
	})
}

func (e *Engine) knownVoice(voice string) bool {
	for _, v := range e.voices {
		if v == voice {
			return true
		}
	}
	return false
}

func layoutChanged(a, b protocol.Settings) bool {
	return a.FontScale != b.FontScale || a.LineSpacing != b.LineSpacing || a.MarginWidth != b.MarginWidth
}

// --- search ---

// SetSearch runs a document-wide case-insensitive search and jumps to the
// first match. An empty query clears the search.
func (e *Engine) SetSearch(ctx context.Context, query string) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		query = strings.TrimSpace(query)
		if query == "" {
			d.search = protocol.SearchState{Active: -1}
			return nil
		}
		needle := strings.ToLower(query)
		var matches []int
		for i, s := range d.sentences {
			if strings.Contains(strings.ToLower(s), needle) {
				matches = append(matches, i)
			}
		}
		d.search = protocol.SearchState{Query: query, Matches: matches, Active: -1}
		if len(matches) > 0 {
			d.search.Active = 0
			d.jumpTo(matches[0])
		}
		return nil
	})
}

// NextMatch cycles forward through the matches.
func (e *Engine) NextMatch(ctx context.Context) (protocol.ReaderView, error) {
	return e.moveMatch(1)
}

// PrevMatch cycles backward through the matches.
func (e *Engine) PrevMatch(ctx context.Context) (protocol.ReaderView, error) {
	return e.moveMatch(-1)
}

func (e *Engine) moveMatch(delta int) (protocol.ReaderView, error) {
	return e.readerOp(func(d *document) error {
		n := len(d.search.Matches)
		if n == 0 {
			return nil
		}
		d.search.Active = ((d.search.Active+delta)%n + n) % n
		d.jumpTo(d.search.Matches[d.search.Active])
		return nil
	})
}
