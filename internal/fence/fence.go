// Package fence admits pushed events into the client store in order. Every
// channel carries its own sequence watermark: an envelope older than the
// newest one applied for its channel is dropped before it can clobber
// fresher state. The one cross-channel rule is that leaving reader mode
// fences the reader channel too, so an in-flight reader event from before
// the transition cannot resurrect a closed view.
package fence

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/logging"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
)

// Fence serializes event admission. All watermark checks and store writes
// for one envelope happen under a single lock, so admission is atomic with
// respect to concurrent envelopes and coordinator commits.
type Fence struct {
	mu         sync.Mutex
	store      *state.Store
	log        *slog.Logger
	watermarks map[protocol.Channel]uint64
}

// New returns a fence writing into store.
func New(store *state.Store, log *slog.Logger) *Fence {
	if log == nil {
		log = slog.Default()
	}
	return &Fence{
		store:      store,
		log:        log,
		watermarks: make(map[protocol.Channel]uint64),
	}
}

// Admit applies env to the store unless its channel has already applied a
// newer event. It reports whether the payload was applied. Equal sequence
// numbers are admitted; only strictly older events are dropped. Payloads
// that fail to decode still advance the watermark and report false.
func (f *Fence) Admit(env protocol.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if env.Seq < f.watermarks[env.Channel] {
		f.log.Debug("stale event dropped",
			"channel", env.Channel, "seq", env.Seq, "watermark", f.watermarks[env.Channel])
		return false
	}
	f.watermarks[env.Channel] = env.Seq

	switch env.Channel {
	case protocol.ChannelSession:
		return f.applySession(env)
	case protocol.ChannelReader:
		return f.applyReader(env)
	case protocol.ChannelOpen:
		return f.applyOpen(env)
	case protocol.ChannelCatalog:
		return f.applyCatalog(env)
	case protocol.ChannelPlayback:
		return f.applyPlayback(env)
	case protocol.ChannelJob:
		return f.applyJob(env)
	case protocol.ChannelLogLevel:
		return f.applyLogLevel(env)
	}
	f.log.Warn("event on unknown channel", "channel", env.Channel, "seq", env.Seq)
	return false
}

// Watermark returns the newest sequence applied for the channel.
func (f *Fence) Watermark(ch protocol.Channel) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watermarks[ch]
}

// Reset forgets all watermarks. Called when the feed reconnects, since the
// engine may have restarted its sequence counter.
func (f *Fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watermarks = make(map[protocol.Channel]uint64)
}

func (f *Fence) applySession(env protocol.Envelope) bool {
	var p protocol.SessionEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("session event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	leavingReader := p.Session.Mode != protocol.ModeReader
	if leavingReader && f.watermarks[protocol.ChannelReader] < env.Seq {
		// Fence the reader channel so an already-sequenced reader event
		// cannot land after this transition.
		f.watermarks[protocol.ChannelReader] = env.Seq
	}

	f.store.Mutate(func(st *state.State) {
		st.Session = p.Session
		if leavingReader {
			st.Reader = nil
		}
	})
	return true
}

func (f *Fence) applyReader(env protocol.Envelope) bool {
	var p protocol.ReaderEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("reader event decode failed", "seq", env.Seq, "err", err)
		return false
	}
	f.store.SetReader(&p.Reader)
	return true
}

func (f *Fence) applyOpen(env protocol.Envelope) bool {
	var p protocol.OpenEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("open event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	f.store.Mutate(func(st *state.State) {
		st.Open = state.OpenStatus{Phase: p.Phase, Path: p.Path, Title: p.Title, Message: p.Message}
		st.Session.Opening = p.Phase == protocol.PhaseStarted
		switch p.Phase {
		case protocol.PhaseFailed:
			st.Notice = notice(state.NoticeError, "open failed: "+messageOr(p.Message, p.Path))
		case protocol.PhaseCancelled:
			st.Notice = notice(state.NoticeInfo, "open cancelled: "+messageOr(p.Title, p.Path))
		}
	})
	return true
}

func (f *Fence) applyCatalog(env protocol.Envelope) bool {
	var p protocol.CatalogEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("catalog event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	f.store.Mutate(func(st *state.State) {
		st.Catalog = state.CatalogStatus{Phase: p.Phase, Count: p.Count}
		switch p.Phase {
		case protocol.PhaseFailed:
			st.Notice = notice(state.NoticeError, "library scan failed: "+p.Message)
		case protocol.PhaseCancelled:
			st.Notice = notice(state.NoticeInfo, "library scan cancelled")
		}
	})
	return true
}

func (f *Fence) applyPlayback(env protocol.Envelope) bool {
	var p protocol.PlaybackEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("playback event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	f.store.Mutate(func(st *state.State) {
		if st.Reader == nil {
			return
		}
		if p.Page != st.Reader.Page {
			// Sequenced before a page turn; the reader event for the new
			// page carries the authoritative playback state.
			return
		}
		st.Reader.Playback = p.Playback
		if p.Highlight != nil {
			h := *p.Highlight
			st.Reader.Highlight = &h
			s := h
			st.Reader.Playback.Sentence = &s
		} else {
			st.Reader.Highlight = nil
			st.Reader.Playback.Sentence = nil
		}
	})
	return true
}

func (f *Fence) applyJob(env protocol.Envelope) bool {
	var p protocol.JobEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("job event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	f.store.Mutate(func(st *state.State) {
		if st.Jobs == nil {
			st.Jobs = make(map[string]protocol.JobEvent)
		}
		if p.Phase.Terminal() {
			delete(st.Jobs, p.JobID)
		} else {
			st.Jobs[p.JobID] = p
		}
		switch p.Phase {
		case protocol.PhaseFailed:
			st.Notice = notice(state.NoticeError, p.Kind+" failed: "+p.Message)
		case protocol.PhaseCancelled:
			st.Notice = notice(state.NoticeInfo, p.Kind+" cancelled")
		}
	})
	return true
}

func (f *Fence) applyLogLevel(env protocol.Envelope) bool {
	var p protocol.LogLevelEvent
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		f.log.Warn("loglevel event decode failed", "seq", env.Seq, "err", err)
		return false
	}

	if err := logging.SetLevelName(p.Level); err != nil {
		f.log.Warn("loglevel event ignored", "level", p.Level, "err", err)
		return false
	}
	f.store.SetLogLevel(p.Level)
	return true
}

func notice(kind state.NoticeKind, text string) *state.Notice {
	return &state.Notice{Kind: kind, Text: text, At: time.Now()}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
