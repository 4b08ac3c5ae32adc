package action

import (
	"context"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// Play starts narration from the current highlight.
func (c *Coordinator) Play(ctx context.Context) error {
	return c.readerOp(ctx, "play", targetPlayback, func(v *protocol.ReaderView) {
		v.Playback.State = protocol.PlaybackPlaying
	}, c.gw.Play)
}

// Pause holds narration at the current sentence.
func (c *Coordinator) Pause(ctx context.Context) error {
	return c.readerOp(ctx, "pause", targetPlayback, func(v *protocol.ReaderView) {
		v.Playback.State = protocol.PlaybackPaused
	}, c.gw.Pause)
}

// TogglePlayback flips between playing and paused; stopped starts playing.
func (c *Coordinator) TogglePlayback(ctx context.Context) error {
	return c.readerOp(ctx, "toggle_playback", targetPlayback, func(v *protocol.ReaderView) {
		if v.Playback.State == protocol.PlaybackPlaying {
			v.Playback.State = protocol.PlaybackPaused
		} else {
			v.Playback.State = protocol.PlaybackPlaying
		}
	}, c.gw.TogglePlayback)
}

// PlayFromPageStart restarts narration at the first sentence of the page.
func (c *Coordinator) PlayFromPageStart(ctx context.Context) error {
	return c.readerOp(ctx, "play_page_start", targetPlayback, func(v *protocol.ReaderView) {
		v.Playback.State = protocol.PlaybackPlaying
		if len(v.Sentences) > 0 {
			idx := 0
			setHighlight(v, &idx)
		}
	}, c.gw.PlayFromPageStart)
}

// PlayFromHighlight starts narration at the highlighted sentence.
func (c *Coordinator) PlayFromHighlight(ctx context.Context) error {
	return c.readerOp(ctx, "play_highlight", targetPlayback, func(v *protocol.ReaderView) {
		v.Playback.State = protocol.PlaybackPlaying
	}, c.gw.PlayFromHighlight)
}

// SeekNext skips narration to the next sentence.
func (c *Coordinator) SeekNext(ctx context.Context) error {
	return c.readerOp(ctx, "seek_next", targetPlayback, func(v *protocol.ReaderView) {
		moveHighlight(v, 1)
	}, c.gw.SeekNext)
}

// SeekPrev rewinds narration to the previous sentence.
func (c *Coordinator) SeekPrev(ctx context.Context) error {
	return c.readerOp(ctx, "seek_prev", targetPlayback, func(v *protocol.ReaderView) {
		moveHighlight(v, -1)
	}, c.gw.SeekPrev)
}

// RepeatSentence replays the current sentence. Nothing to stage; the
// highlight does not move.
func (c *Coordinator) RepeatSentence(ctx context.Context) error {
	return c.readerOp(ctx, "repeat", targetPlayback, nil, c.gw.RepeatSentence)
}
