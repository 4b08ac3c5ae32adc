// Package action coordinates user-triggered mutations against the engine:
// optimistic local apply, one blocking gateway call, then commit or rollback
// gated by per-target generation counters so only the newest call for a
// target settles it. Failures never escape to the presentation layer; they
// surface as a restored snapshot, a notice, the store error string and a
// telemetry record.
package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sguzman/lantern-leaf-sub000/internal/logging"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
	"github.com/sguzman/lantern-leaf-sub000/internal/telemetry"
)

// Mutation targets. Each owns a generation counter; only the newest call
// for a target may commit or roll back. Mode-owning operations (open,
// close, refresh) share the session target so a close always supersedes an
// in-flight open. Panel toggles share one target because every toggle
// writes the same panel set.
const (
	targetSession  = "session"
	targetTheme    = "theme"
	targetPanel    = "panel"
	targetPage     = "reader.page"
	targetSentence = "reader.sentence"
	targetSearch   = "reader.search"
	targetTextOnly = "reader.text_only"
	targetPlayback = "playback"
	targetRecents  = "recents"
	targetCatalog  = "catalog"
	targetLogLevel = "loglevel"
	targetJob      = "job"
)

// Coordinator funnels every user-triggered mutation through one pattern:
// snapshot, optimistic apply, gateway call, settle.
type Coordinator struct {
	store *state.Store
	gw    Gateway
	tel   *telemetry.Log
	log   *slog.Logger

	mu   sync.Mutex
	gens map[string]uint64
	busy int
}

// New returns a coordinator writing into store and calling gw.
func New(store *state.Store, gw Gateway, tel *telemetry.Log, log *slog.Logger) *Coordinator {
	if tel == nil {
		tel = telemetry.NewLog(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store: store,
		gw:    gw,
		tel:   tel,
		log:   log,
		gens:  make(map[string]uint64),
	}
}

// Telemetry exposes the action log rendered in the stats panel.
func (c *Coordinator) Telemetry() *telemetry.Log {
	return c.tel
}

// begin bumps the target's generation and returns the new value. The caller
// owns the target until a newer begin for the same target.
func (c *Coordinator) begin(target string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[target]++
	return c.gens[target]
}

// settle applies fn to the store iff gen is still the newest for target.
// The generation check and the store write happen under one lock so a newer
// call cannot slip between them.
func (c *Coordinator) settle(target string, gen uint64, fn func(*state.State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[target] != gen {
		return false
	}
	c.store.Mutate(fn)
	return true
}

// busyStart raises the global busy flag; nested busy operations hold it
// until the last one ends.
func (c *Coordinator) busyStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy++
	if c.busy == 1 {
		c.store.SetBusy(true)
	}
}

func (c *Coordinator) busyEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy > 0 {
		c.busy--
	}
	if c.busy == 0 {
		c.store.SetBusy(false)
	}
}

// record appends one telemetry entry for a finished call.
func (c *Coordinator) record(name, target string, start time.Time, err error) {
	rec := telemetry.Record{
		Action:   name,
		Target:   target,
		Start:    start,
		Duration: time.Since(start),
		OK:       err == nil,
	}
	if err != nil {
		rec.Err = protocol.AsError(err).Error()
	}
	c.tel.Append(rec)
}

// ok commits the authoritative result if still newest, then records.
func (c *Coordinator) ok(name, target string, gen uint64, start time.Time, commit func(*state.State)) {
	if !c.settle(target, gen, commit) {
		c.log.Debug("commit superseded", "action", name, "target", target)
	}
	c.record(name, target, start, nil)
}

// fail folds a gateway failure into the store: rollback while still newest,
// then the user-visible outcome. A cancelled open stays informational and
// never sets the store error.
func (c *Coordinator) fail(name, target string, gen uint64, start time.Time, restore func(*state.State), err error) {
	pe := protocol.AsError(err)
	if restore != nil && !c.settle(target, gen, restore) {
		c.log.Debug("rollback superseded", "action", name, "target", target)
	}
	c.store.Mutate(func(st *state.State) {
		if pe.Code == protocol.CodeOpenCancelled {
			st.Notice = &state.Notice{Kind: state.NoticeInfo, Text: "open cancelled", At: time.Now()}
			return
		}
		st.LastError = pe.Error()
		st.Notice = &state.Notice{Kind: state.NoticeError, Text: pe.Error(), At: time.Now()}
	})
	c.record(name, target, start, err)
	c.log.Warn("action failed", "action", name, "target", target, "err", err)
}

// Refresh pulls the authoritative snapshot and reseeds the store. Used at
// startup and whenever the feed reconnects.
func (c *Coordinator) Refresh(ctx context.Context) error {
	gen := c.begin(targetSession)
	start := time.Now()
	c.busyStart()
	defer c.busyEnd()

	boot, err := c.gw.Bootstrap(ctx)
	if err != nil {
		c.fail("refresh", targetSession, gen, start, nil, err)
		return err
	}

	c.ok("refresh", targetSession, gen, start, func(st *state.State) {
		st.Session = boot.Session
		st.Reader = boot.Reader.Clone()
		if boot.LogLevel != "" {
			st.LogLevel = boot.LogLevel
		}
		st.Library = boot.Library
		st.EngineVersion = boot.Version
		if len(boot.Voices) > 0 {
			st.Voices = append([]string(nil), boot.Voices...)
		}
		st.LastError = ""
	})
	if boot.LogLevel != "" {
		if err := logging.SetLevelName(boot.LogLevel); err != nil {
			c.log.Warn("bootstrap log level ignored", "level", boot.LogLevel, "err", err)
		}
	}
	return nil
}

// open runs one of the open operations: optimistic opening state, the call,
// then the authoritative session and reader view.
func (c *Coordinator) open(ctx context.Context, name, label string, call func(context.Context) (protocol.OpenResult, error)) error {
	gen := c.begin(targetSession)
	start := time.Now()
	c.busyStart()
	defer c.busyEnd()

	var beforeSession protocol.Session
	var beforeReader *protocol.ReaderView
	var beforeOpen state.OpenStatus
	c.store.Mutate(func(st *state.State) {
		beforeSession = st.Session
		beforeReader = st.Reader.Clone()
		beforeOpen = st.Open
		st.Session.Opening = true
		st.Open = state.OpenStatus{Phase: protocol.PhaseStarted, Path: label}
	})

	res, err := call(ctx)
	if err != nil {
		c.fail(name, targetSession, gen, start, func(st *state.State) {
			st.Session = beforeSession
			st.Reader = beforeReader
			st.Open = beforeOpen
		}, err)
		return err
	}

	c.ok(name, targetSession, gen, start, func(st *state.State) {
		st.Session = res.Session
		st.Reader = res.Reader.Clone()
		st.Open = state.OpenStatus{Phase: protocol.PhaseReady, Path: label, Title: readerTitle(res.Reader)}
		st.LastError = ""
	})
	return nil
}

// OpenPath opens a document by filesystem path.
func (c *Coordinator) OpenPath(ctx context.Context, path string) error {
	return c.open(ctx, "open_path", path, func(ctx context.Context) (protocol.OpenResult, error) {
		return c.gw.OpenPath(ctx, path)
	})
}

// OpenEntry opens a catalog entry by id.
func (c *Coordinator) OpenEntry(ctx context.Context, entryID string) error {
	return c.open(ctx, "open_entry", entryID, func(ctx context.Context) (protocol.OpenResult, error) {
		return c.gw.OpenEntry(ctx, entryID)
	})
}

// OpenText opens ad-hoc text under a title.
func (c *Coordinator) OpenText(ctx context.Context, title, text string) error {
	return c.open(ctx, "open_text", title, func(ctx context.Context) (protocol.OpenResult, error) {
		return c.gw.OpenText(ctx, title, text)
	})
}

// CloseReader leaves reader mode. The view clears immediately; the engine
// result confirms or the rollback restores it.
func (c *Coordinator) CloseReader(ctx context.Context) error {
	gen := c.begin(targetSession)
	start := time.Now()
	c.busyStart()
	defer c.busyEnd()

	var beforeSession protocol.Session
	var beforeReader *protocol.ReaderView
	var beforeOpen state.OpenStatus
	wasReading := false
	c.store.Mutate(func(st *state.State) {
		beforeSession = st.Session
		beforeReader = st.Reader.Clone()
		beforeOpen = st.Open
		// An in-flight open counts: closing must reach the engine so it
		// can cancel the open.
		wasReading = st.Session.Mode == protocol.ModeReader || st.Reader != nil || st.Session.Opening
		st.Session.Mode = protocol.ModeStarter
		st.Session.ResourceID = ""
		st.Session.Opening = false
		st.Reader = nil
		st.Open = state.OpenStatus{}
	})
	if !wasReading {
		c.record("close", targetSession, start, nil)
		return nil
	}

	sess, err := c.gw.CloseReader(ctx)
	if err != nil {
		c.fail("close", targetSession, gen, start, func(st *state.State) {
			st.Session = beforeSession
			st.Reader = beforeReader
			st.Open = beforeOpen
		}, err)
		return err
	}

	c.ok("close", targetSession, gen, start, func(st *state.State) {
		st.Session = sess
		st.Reader = nil
		st.Open = state.OpenStatus{}
	})
	return nil
}

// ToggleTheme flips dark/light. Only the theme field settles, so a
// concurrent mode transition is never clobbered.
func (c *Coordinator) ToggleTheme(ctx context.Context) error {
	gen := c.begin(targetTheme)
	start := time.Now()

	var before string
	c.store.Mutate(func(st *state.State) {
		before = st.Session.Theme
		if st.Session.Theme == protocol.ThemeDark {
			st.Session.Theme = protocol.ThemeLight
		} else {
			st.Session.Theme = protocol.ThemeDark
		}
	})

	sess, err := c.gw.ToggleTheme(ctx)
	if err != nil {
		c.fail("toggle_theme", targetTheme, gen, start, func(st *state.State) {
			st.Session.Theme = before
		}, err)
		return err
	}

	c.ok("toggle_theme", targetTheme, gen, start, func(st *state.State) {
		st.Session.Theme = sess.Theme
	})
	return nil
}

// TogglePanel flips an overlay panel. The session and reader panel sets are
// staged and settled together since they mirror each other.
func (c *Coordinator) TogglePanel(ctx context.Context, panel protocol.Panel) error {
	gen := c.begin(targetPanel)
	start := time.Now()

	var before protocol.PanelSet
	c.store.Mutate(func(st *state.State) {
		before = st.Session.Panels
		next := st.Session.Panels.Toggle(panel)
		st.Session.Panels = next
		if st.Reader != nil {
			st.Reader.Panels = next
		}
	})

	set, err := c.gw.TogglePanel(ctx, panel)
	if err != nil {
		c.fail("toggle_panel", targetPanel, gen, start, func(st *state.State) {
			st.Session.Panels = before
			if st.Reader != nil {
				st.Reader.Panels = before
			}
		}, err)
		return err
	}

	c.ok("toggle_panel", targetPanel, gen, start, func(st *state.State) {
		st.Session.Panels = set
		if st.Reader != nil {
			st.Reader.Panels = set
		}
	})
	return nil
}

// SetLogLevel applies a log level locally and on the engine.
func (c *Coordinator) SetLogLevel(ctx context.Context, level string) error {
	gen := c.begin(targetLogLevel)
	start := time.Now()

	var before string
	c.store.Mutate(func(st *state.State) {
		before = st.LogLevel
		st.LogLevel = level
	})
	if err := logging.SetLevelName(level); err != nil {
		c.settle(targetLogLevel, gen, func(st *state.State) {
			st.LogLevel = before
		})
		c.record("set_log_level", targetLogLevel, start, err)
		return err
	}

	applied, err := c.gw.SetLogLevel(ctx, level)
	if err != nil {
		c.fail("set_log_level", targetLogLevel, gen, start, func(st *state.State) {
			st.LogLevel = before
			logging.SetLevelName(before) //nolint:errcheck // restoring a level that parsed before
		}, err)
		return err
	}

	c.ok("set_log_level", targetLogLevel, gen, start, func(st *state.State) {
		st.LogLevel = applied
	})
	return nil
}

func readerTitle(v *protocol.ReaderView) string {
	if v == nil {
		return ""
	}
	return v.Title
}
