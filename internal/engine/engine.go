// Package engine is the authoritative reading core: it owns the session,
// the open document, narration, background jobs and the library, and pushes
// every state change as a sequenced event. It implements the client
// gateway directly, so it can serve in-process or behind the HTTP/ws
// server.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/library"
	"github.com/sguzman/lantern-leaf-sub000/internal/logging"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// Sink receives every event the engine emits. Send is called with the
// engine lock held and must not block; implementations fan out or drop.
type Sink interface {
	Send(env protocol.Envelope)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(env protocol.Envelope)

func (f SinkFunc) Send(env protocol.Envelope) { f(env) }

// Options configure an engine instance.
type Options struct {
	// LibraryDir is scanned for documents. Empty disables the catalog.
	LibraryDir string
	// Recents persists the recently-opened list; nil disables persistence.
	Recents *library.Store
	// Voices offered to clients; the first is the default.
	Voices []string
	// DefaultRate seeds the speech rate for new sessions.
	DefaultRate float64
	// NarratorWPM is the simulated narration pace at rate 1.0.
	NarratorWPM float64
	// JobStep is the simulated work per precompute progress tick.
	JobStep time.Duration
	// StatsInterval bounds how often process diagnostics are sampled.
	StatsInterval time.Duration
	// RescanDebounce is handed to the library watcher.
	RescanDebounce time.Duration
	// Version is reported in the bootstrap payload.
	Version string
}

func (o *Options) fill() {
	if len(o.Voices) == 0 {
		o.Voices = []string{"ivy", "marlow", "quinn", "sage"}
	}
	if o.DefaultRate <= 0 {
		o.DefaultRate = 1.0
	}
	if o.NarratorWPM <= 0 {
		o.NarratorWPM = 160
	}
	if o.JobStep <= 0 {
		o.JobStep = 150 * time.Millisecond
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = 2 * time.Second
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// openToken identifies one in-flight open. A newer open supersedes the
// holder by closing done.
type openToken struct {
	done chan struct{}
}

// Engine is the reading core. All state behind mu; events are emitted
// while holding it so sequence order matches mutation order.
type Engine struct {
	opts Options
	sink Sink
	log  *slog.Logger

	mu      sync.Mutex
	seq     uint64
	session protocol.Session
	doc     *document
	opening *openToken
	voices  []string

	// settings survive close and seed the next open.
	settings protocol.Settings

	narrator narrator
	jobs     map[string]*job

	catalog []protocol.CatalogEntry
	scanned bool

	stats statsSampler

	openedAt  time.Time
	visited   map[int]bool
	furthest  int
	closeOnce sync.Once
	closed    chan struct{}
}

// New builds an engine. Run must be called for the watcher, diagnostics
// and background loops to operate.
func New(opts Options, sink Sink, log *slog.Logger) *Engine {
	opts.fill()
	if log == nil {
		log = slog.Default()
	}
	settings := protocol.DefaultSettings()
	settings.SpeechRate = opts.DefaultRate
	settings.SpeechVoice = opts.Voices[0]
	e := &Engine{
		opts: opts,
		sink: sink,
		log:  log,
		session: protocol.Session{
			Mode:  protocol.ModeStarter,
			Theme: protocol.ThemeDark,
		},
		settings: settings,
		voices:   opts.Voices,
		jobs:     make(map[string]*job),
		visited:  make(map[int]bool),
		closed:   make(chan struct{}),
	}
	e.narrator.eng = e
	e.narrator.state = protocol.PlaybackStopped
	return e
}

// Run owns the engine's background work: the initial catalog scan, the
// library watcher, and process diagnostics. It blocks until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	if e.opts.LibraryDir != "" {
		if _, err := e.rescan(ctx); err != nil {
			e.log.Warn("initial catalog scan failed", "dir", e.opts.LibraryDir, "err", err)
		}
	}

	var rescans <-chan struct{}
	if e.opts.LibraryDir != "" {
		watcher, err := library.NewWatcher(e.opts.LibraryDir, e.opts.RescanDebounce)
		if err != nil {
			e.log.Warn("library watcher unavailable", "err", err)
		} else if err := watcher.Start(); err != nil {
			e.log.Warn("library watcher failed to start", "dir", e.opts.LibraryDir, "err", err)
		} else {
			defer watcher.Stop() //nolint:errcheck
			rescans = watcher.Rescans()
		}
	}

	ticker := time.NewTicker(e.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rescans:
			if _, err := e.rescan(ctx); err != nil {
				e.log.Warn("catalog rescan failed", "err", err)
			}
		case <-ticker.C:
			e.stats.sample()
		}
	}
}

// shutdown stops narration and jobs and persists the reading position.
func (e *Engine) shutdown() {
	e.closeOnce.Do(func() { close(e.closed) })
	e.mu.Lock()
	e.narrator.stopLocked()
	e.cancelJobsLocked("engine shutting down")
	var entry *protocol.RecentEntry
	if e.doc != nil {
		v := e.doc.recentEntry()
		entry = &v
	}
	e.mu.Unlock()
	if entry != nil {
		e.saveRecent(context.Background(), *entry)
	}
}

// emitLocked assigns the next sequence number and hands the envelope to the
// sink. Callers hold e.mu, which is what keeps event order equal to state
// mutation order across all channels.
func (e *Engine) emitLocked(ch protocol.Channel, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("event marshal failed", "channel", ch, "err", err)
		return
	}
	e.seq++
	e.sink.Send(protocol.Envelope{Channel: ch, Seq: e.seq, Payload: raw})
}

func (e *Engine) emitSessionLocked() {
	e.emitLocked(protocol.ChannelSession, protocol.SessionEvent{Session: e.session})
}

func (e *Engine) emitReaderLocked() {
	if e.doc == nil {
		return
	}
	e.emitLocked(protocol.ChannelReader, protocol.ReaderEvent{Reader: e.viewLocked()})
}

// Bootstrap returns the full engine state for a connecting client.
func (e *Engine) Bootstrap(ctx context.Context) (protocol.Bootstrap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	boot := protocol.Bootstrap{
		Version:  e.opts.Version,
		Library:  e.opts.LibraryDir,
		Session:  e.session,
		LogLevel: logging.LevelString(logging.CurrentLevel()),
		Voices:   append([]string(nil), e.voices...),
	}
	if e.doc != nil {
		v := e.viewLocked()
		boot.Reader = &v
	}
	return boot, nil
}

// --- open / close ---

// OpenPath opens a document from the filesystem.
func (e *Engine) OpenPath(ctx context.Context, path string) (protocol.OpenResult, error) {
	tok := e.beginOpen(path, "")
	doc, err := loadDocument(path, e.currentSettings())
	return e.resolveOpen(ctx, tok, doc, err)
}

// OpenEntry opens a catalog entry by id.
func (e *Engine) OpenEntry(ctx context.Context, entryID string) (protocol.OpenResult, error) {
	e.mu.Lock()
	var path string
	for _, entry := range e.catalog {
		if entry.ID == entryID {
			path = entry.Path
			break
		}
	}
	e.mu.Unlock()
	if path == "" {
		// Recents rows for pasted text outlive their content.
		return protocol.OpenResult{}, protocol.Errf(protocol.CodeNotFound, "no catalog entry %s", entryID)
	}
	tok := e.beginOpen(path, "")
	doc, err := loadDocument(path, e.currentSettings())
	return e.resolveOpen(ctx, tok, doc, err)
}

// OpenText opens pasted text under a title.
func (e *Engine) OpenText(ctx context.Context, title, text string) (protocol.OpenResult, error) {
	tok := e.beginOpen("", title)
	doc, err := textDocument(title, text, e.currentSettings())
	return e.resolveOpen(ctx, tok, doc, err)
}

func (e *Engine) currentSettings() protocol.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// beginOpen claims the open slot, cancelling any open already in flight,
// and announces the attempt.
func (e *Engine) beginOpen(path, title string) *openToken {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opening != nil {
		close(e.opening.done)
	}
	tok := &openToken{done: make(chan struct{})}
	e.opening = tok
	e.session.Opening = true
	e.emitLocked(protocol.ChannelOpen, protocol.OpenEvent{
		Phase: protocol.PhaseStarted,
		Path:  path,
		Title: title,
	})
	e.emitSessionLocked()
	return tok
}

// resolveOpen settles an open attempt: superseded attempts report
// cancellation, failures roll the session back, success installs the
// document and announces the new view.
func (e *Engine) resolveOpen(ctx context.Context, tok *openToken, doc *document, loadErr error) (protocol.OpenResult, error) {
	select {
	case <-tok.done:
		loadErr = protocol.Errf(protocol.CodeOpenCancelled, "open superseded")
	case <-ctx.Done():
		loadErr = protocol.Errf(protocol.CodeOpenCancelled, "open abandoned: %v", ctx.Err())
	default:
	}

	resume := 0
	if loadErr == nil && doc != nil {
		resume = e.savedPosition(ctx, doc.id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opening != tok {
		// A newer open owns the slot; do not touch session state.
		e.emitLocked(protocol.ChannelOpen, protocol.OpenEvent{Phase: protocol.PhaseCancelled, Message: "superseded"})
		return protocol.OpenResult{}, protocol.Errf(protocol.CodeOpenCancelled, "open superseded")
	}
	e.opening = nil
	e.session.Opening = false

	if loadErr != nil {
		pe := protocol.AsError(loadErr)
		phase := protocol.PhaseFailed
		if pe.Code == protocol.CodeOpenCancelled {
			phase = protocol.PhaseCancelled
		}
		e.emitLocked(protocol.ChannelOpen, protocol.OpenEvent{Phase: phase, Message: pe.Message})
		e.emitSessionLocked()
		return protocol.OpenResult{}, pe
	}

	// Replace any open document.
	e.narrator.stopLocked()
	e.cancelJobsLocked("document closed")
	if old := e.doc; old != nil {
		go e.saveRecent(context.Background(), old.recentEntry())
	}
	if resume > 0 {
		doc.setPage(resume)
	}
	e.doc = doc
	e.session.Mode = protocol.ModeReader
	e.session.ResourceID = doc.id
	e.openedAt = time.Now()
	e.visited = map[int]bool{doc.page: true}
	e.furthest = doc.ordinal()

	e.emitLocked(protocol.ChannelOpen, protocol.OpenEvent{
		Phase:      protocol.PhaseReady,
		ResourceID: doc.id,
		Path:       doc.path,
		Title:      doc.title,
	})
	e.emitSessionLocked()
	view := e.viewLocked()
	e.emitLocked(protocol.ChannelReader, protocol.ReaderEvent{Reader: view})

	go e.saveRecent(context.Background(), doc.recentEntry())

	return protocol.OpenResult{Session: e.session, Reader: &view}, nil
}

// CloseReader leaves reader mode, stopping narration and jobs.
func (e *Engine) CloseReader(ctx context.Context) (protocol.Session, error) {
	e.mu.Lock()
	if e.opening != nil {
		// Closing while an open is in flight cancels it.
		close(e.opening.done)
		e.opening = nil
	}
	e.narrator.stopLocked()
	e.cancelJobsLocked("document closed")
	var entry *protocol.RecentEntry
	if e.doc != nil {
		v := e.doc.recentEntry()
		entry = &v
	}
	e.doc = nil
	e.session.Mode = protocol.ModeStarter
	e.session.ResourceID = ""
	e.session.Opening = false
	sess := e.session
	e.emitSessionLocked()
	e.mu.Unlock()

	if entry != nil {
		e.saveRecent(ctx, *entry)
	}
	return sess, nil
}

// --- session-level toggles ---

// ToggleTheme flips between the dark and light palettes.
func (e *Engine) ToggleTheme(ctx context.Context) (protocol.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Theme == protocol.ThemeDark {
		e.session.Theme = protocol.ThemeLight
	} else {
		e.session.Theme = protocol.ThemeDark
	}
	e.emitSessionLocked()
	return e.session, nil
}

// TogglePanel flips an overlay panel, keeping settings and stats mutually
// exclusive.
func (e *Engine) TogglePanel(ctx context.Context, panel protocol.Panel) (protocol.PanelSet, error) {
	switch panel {
	case protocol.PanelSettings, protocol.PanelStats, protocol.PanelTTS:
	default:
		return protocol.PanelSet{}, protocol.Errf(protocol.CodeInvalid, "unknown panel %q", panel)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Panels = e.session.Panels.Toggle(panel)
	e.emitSessionLocked()
	if e.doc != nil {
		e.emitReaderLocked()
	}
	return e.session.Panels, nil
}

// SetLogLevel retargets the engine's log level and announces it.
func (e *Engine) SetLogLevel(ctx context.Context, level string) (string, error) {
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return "", protocol.Errf(protocol.CodeInvalid, "unknown log level %q", level)
	}
	logging.SetLevel(parsed)
	applied := logging.LevelString(parsed)
	e.mu.Lock()
	e.emitLocked(protocol.ChannelLogLevel, protocol.LogLevelEvent{Level: applied})
	e.mu.Unlock()
	e.log.Info("log level changed", "level", applied)
	return applied, nil
}
