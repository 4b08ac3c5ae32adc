package engine

import (
	"context"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// narrator simulates text-to-speech playback: while playing, a timer sized
// to the current sentence advances the highlight. Timer callbacks carry a
// generation number so pause, seek and stop invalidate anything already
// scheduled.
type narrator struct {
	eng   *Engine
	state protocol.PlaybackState
	gen   uint64
	timer *time.Timer
}

// minSentenceDelay keeps the simulation from busy-spinning on empty
// sentences or extreme rates.
const minSentenceDelay = 5 * time.Millisecond

// stateLocked reports the narrator as wire playback state.
func (n *narrator) stateLocked() protocol.Playback {
	p := protocol.Playback{
		State: n.state,
		Rate:  n.eng.settings.SpeechRate,
		Voice: n.eng.settings.SpeechVoice,
	}
	if d := n.eng.doc; d != nil && d.highlight != nil {
		s := *d.highlight
		p.Sentence = &s
	}
	return p
}

func (n *narrator) playLocked() {
	d := n.eng.doc
	if d == nil || len(d.sentences) == 0 {
		return
	}
	if d.highlight == nil {
		start, _ := d.pageBounds(d.page)
		d.jumpTo(start)
	}
	n.state = protocol.PlaybackPlaying
	n.scheduleLocked()
}

func (n *narrator) pauseLocked() {
	if n.state == protocol.PlaybackPlaying {
		n.state = protocol.PlaybackPaused
	}
	n.invalidateLocked()
}

func (n *narrator) stopLocked() {
	n.state = protocol.PlaybackStopped
	n.invalidateLocked()
}

func (n *narrator) invalidateLocked() {
	n.gen++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// rescheduleLocked restarts the current sentence's timer, picking up rate
// changes and seeks.
func (n *narrator) rescheduleLocked() {
	if n.state == protocol.PlaybackPlaying {
		n.scheduleLocked()
	}
}

func (n *narrator) scheduleLocked() {
	n.invalidateLocked()
	d := n.eng.doc
	if d == nil {
		return
	}
	words := 1
	if ord := d.ordinal(); ord < len(d.words) {
		words = d.words[ord]
	}
	gen := n.gen
	n.timer = time.AfterFunc(n.delayFor(words), func() {
		n.eng.advanceNarration(gen)
	})
}

// delayFor sizes a sentence's narration time from its word count, the
// configured pace and the session speech rate.
func (n *narrator) delayFor(words int) time.Duration {
	rate := n.eng.settings.SpeechRate
	if rate <= 0 {
		rate = 1
	}
	wpm := n.eng.opts.NarratorWPM * rate
	delay := time.Duration(float64(words) / wpm * float64(time.Minute))
	if delay < minSentenceDelay {
		delay = minSentenceDelay
	}
	return delay
}

// advanceNarration is the timer callback: move to the next sentence, or
// stop at the end of the document.
func (e *Engine) advanceNarration(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := &e.narrator
	if gen != n.gen || n.state != protocol.PlaybackPlaying || e.doc == nil {
		return
	}
	d := e.doc
	next := d.ordinal() + 1
	if next >= len(d.sentences) {
		n.state = protocol.PlaybackStopped
		n.invalidateLocked()
		view := e.viewLocked()
		e.emitLocked(protocol.ChannelPlayback, protocol.PlaybackEvent{
			Playback:  view.Playback,
			Page:      view.Page,
			Highlight: view.Highlight,
		})
		return
	}

	prevPage := d.page
	d.jumpTo(next)
	e.markProgressLocked()
	view := e.viewLocked()
	if d.page != prevPage {
		// Crossing a page needs the new page's content, not just a
		// highlight move.
		e.emitLocked(protocol.ChannelReader, protocol.ReaderEvent{Reader: view})
		go e.saveRecent(context.Background(), d.recentEntry())
	} else {
		e.emitLocked(protocol.ChannelPlayback, protocol.PlaybackEvent{
			Playback:  view.Playback,
			Page:      view.Page,
			Highlight: view.Highlight,
		})
	}
	n.scheduleLocked()
}

// playbackOp runs one narrator mutation: highlight-only changes travel on
// the playback channel, page crossings on the reader channel.
func (e *Engine) playbackOp(fn func() error) (protocol.ReaderView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return protocol.ReaderView{}, protocol.Errf(protocol.CodeConflict, "no document open")
	}
	prevPage := e.doc.page
	if err := fn(); err != nil {
		return protocol.ReaderView{}, err
	}
	e.markProgressLocked()
	view := e.viewLocked()
	if e.doc.page != prevPage {
		e.emitLocked(protocol.ChannelReader, protocol.ReaderEvent{Reader: view})
		go e.saveRecent(context.Background(), e.doc.recentEntry())
	} else {
		e.emitLocked(protocol.ChannelPlayback, protocol.PlaybackEvent{
			Playback:  view.Playback,
			Page:      view.Page,
			Highlight: view.Highlight,
		})
	}
	return view, nil
}

// Play starts narration from the current highlight, or the top of the page.
func (e *Engine) Play(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		e.narrator.playLocked()
		return nil
	})
}

// Pause holds narration in place.
func (e *Engine) Pause(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		e.narrator.pauseLocked()
		return nil
	})
}

// TogglePlayback flips between playing and paused.
func (e *Engine) TogglePlayback(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		if e.narrator.state == protocol.PlaybackPlaying {
			e.narrator.pauseLocked()
		} else {
			e.narrator.playLocked()
		}
		return nil
	})
}

// PlayFromPageStart restarts narration at the top of the current page.
func (e *Engine) PlayFromPageStart(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		start, _ := e.doc.pageBounds(e.doc.page)
		e.doc.jumpTo(start)
		e.narrator.playLocked()
		return nil
	})
}

// PlayFromHighlight starts narration at the highlighted sentence.
func (e *Engine) PlayFromHighlight(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		e.narrator.playLocked()
		return nil
	})
}

// SeekNext skips narration forward one sentence.
func (e *Engine) SeekNext(ctx context.Context) (protocol.ReaderView, error) {
	return e.seek(1)
}

// SeekPrev rewinds narration one sentence.
func (e *Engine) SeekPrev(ctx context.Context) (protocol.ReaderView, error) {
	return e.seek(-1)
}

func (e *Engine) seek(delta int) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		d := e.doc
		if len(d.sentences) == 0 {
			return nil
		}
		d.jumpTo(d.ordinal() + delta)
		e.narrator.rescheduleLocked()
		return nil
	})
}

// RepeatSentence restarts the current sentence's narration timer.
func (e *Engine) RepeatSentence(ctx context.Context) (protocol.ReaderView, error) {
	return e.playbackOp(func() error {
		e.narrator.rescheduleLocked()
		return nil
	})
}
