package action

import (
	"context"
	"strings"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
)

// readerOp runs one reader-view mutation: snapshot the view, stage the
// optimistic effect if one is known, call the gateway, then commit the
// authoritative view. Commits and rollbacks only land while the session is
// still reading the same resource, so a close or re-open in flight wins.
func (c *Coordinator) readerOp(ctx context.Context, name, target string, stage func(*protocol.ReaderView), call func(context.Context) (protocol.ReaderView, error)) error {
	gen := c.begin(target)
	start := time.Now()

	var before *protocol.ReaderView
	reading := false
	c.store.Mutate(func(st *state.State) {
		if st.Reader == nil {
			return
		}
		reading = true
		before = st.Reader.Clone()
		if stage != nil {
			stage(st.Reader)
		}
	})
	if !reading {
		return nil
	}

	view, err := call(ctx)
	if err != nil {
		c.fail(name, target, gen, start, func(st *state.State) {
			if before == nil || !st.Session.Reading() || st.Session.ResourceID != before.ResourceID {
				return
			}
			st.Reader = before
		}, err)
		return err
	}

	c.ok(name, target, gen, start, func(st *state.State) {
		if !st.Session.Reading() || st.Session.ResourceID != view.ResourceID {
			return
		}
		st.Reader = view.Clone()
	})
	return nil
}

// moveHighlight shifts the highlighted sentence by delta, clamped to the
// sentences on the current page. A view without a highlight starts at zero.
func moveHighlight(v *protocol.ReaderView, delta int) {
	if len(v.Sentences) == 0 {
		return
	}
	idx := 0
	if v.Highlight != nil {
		idx = *v.Highlight + delta
	} else if delta > 0 {
		idx = delta - 1
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(v.Sentences) {
		idx = len(v.Sentences) - 1
	}
	setHighlight(v, &idx)
}

// setHighlight updates the highlight and keeps the playback sentence mirror
// in step.
func setHighlight(v *protocol.ReaderView, idx *int) {
	if idx == nil {
		v.Highlight = nil
		v.Playback.Sentence = nil
		return
	}
	h := *idx
	v.Highlight = &h
	s := h
	v.Playback.Sentence = &s
}

// NextPage advances one page. No optimistic stage: page content is only
// known to the engine.
func (c *Coordinator) NextPage(ctx context.Context) error {
	return c.readerOp(ctx, "next_page", targetPage, nil, c.gw.NextPage)
}

// PrevPage goes back one page.
func (c *Coordinator) PrevPage(ctx context.Context) error {
	return c.readerOp(ctx, "prev_page", targetPage, nil, c.gw.PrevPage)
}

// SetPage jumps to a page by index.
func (c *Coordinator) SetPage(ctx context.Context, page int) error {
	return c.readerOp(ctx, "set_page", targetPage, nil, func(ctx context.Context) (protocol.ReaderView, error) {
		return c.gw.SetPage(ctx, page)
	})
}

// NextSentence moves the highlight forward within the page.
func (c *Coordinator) NextSentence(ctx context.Context) error {
	return c.readerOp(ctx, "next_sentence", targetSentence, func(v *protocol.ReaderView) {
		moveHighlight(v, 1)
	}, c.gw.NextSentence)
}

// PrevSentence moves the highlight back within the page.
func (c *Coordinator) PrevSentence(ctx context.Context) error {
	return c.readerOp(ctx, "prev_sentence", targetSentence, func(v *protocol.ReaderView) {
		moveHighlight(v, -1)
	}, c.gw.PrevSentence)
}

// SelectSentence highlights a sentence by page-local index.
func (c *Coordinator) SelectSentence(ctx context.Context, index int) error {
	return c.readerOp(ctx, "select_sentence", targetSentence, func(v *protocol.ReaderView) {
		if index >= 0 && index < len(v.Sentences) {
			setHighlight(v, &index)
		}
	}, func(ctx context.Context) (protocol.ReaderView, error) {
		return c.gw.SelectSentence(ctx, index)
	})
}

// ToggleTextOnly switches between rendered markdown and plain text.
func (c *Coordinator) ToggleTextOnly(ctx context.Context) error {
	return c.readerOp(ctx, "toggle_text_only", targetTextOnly, func(v *protocol.ReaderView) {
		v.TextOnly = !v.TextOnly
	}, c.gw.ToggleTextOnly)
}

// SetSearch starts a search. Matches come back from the engine; locally the
// query is staged and stale matches cleared.
func (c *Coordinator) SetSearch(ctx context.Context, query string) error {
	return c.readerOp(ctx, "set_search", targetSearch, func(v *protocol.ReaderView) {
		v.Search.Query = query
		v.Search.Matches = nil
		v.Search.Active = -1
	}, func(ctx context.Context) (protocol.ReaderView, error) {
		return c.gw.SetSearch(ctx, query)
	})
}

// NextMatch cycles to the next search match.
func (c *Coordinator) NextMatch(ctx context.Context) error {
	return c.readerOp(ctx, "next_match", targetSearch, func(v *protocol.ReaderView) {
		if n := len(v.Search.Matches); n > 0 {
			v.Search.Active = (v.Search.Active + 1) % n
		}
	}, c.gw.NextMatch)
}

// PrevMatch cycles to the previous search match.
func (c *Coordinator) PrevMatch(ctx context.Context) error {
	return c.readerOp(ctx, "prev_match", targetSearch, func(v *protocol.ReaderView) {
		if n := len(v.Search.Matches); n > 0 {
			v.Search.Active = (v.Search.Active - 1 + n) % n
		}
	}, c.gw.PrevMatch)
}

// ApplySettings patches reader settings. The target carries the patched
// field names so edits to different settings never invalidate each other.
func (c *Coordinator) ApplySettings(ctx context.Context, patch protocol.SettingsPatch) error {
	if patch.IsZero() {
		return nil
	}
	target := "settings:" + strings.Join(patch.Fields(), ",")
	return c.readerOp(ctx, "apply_settings", target, func(v *protocol.ReaderView) {
		v.Settings = patch.Apply(v.Settings)
	}, func(ctx context.Context) (protocol.ReaderView, error) {
		return c.gw.ApplySettings(ctx, patch)
	})
}
