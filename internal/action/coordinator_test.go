package action

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
	"github.com/sguzman/lantern-leaf-sub000/internal/telemetry"
)

// fakeGateway answers every call from canned fields and records call names.
// onCall runs inside the call, after recording, which lets a test interleave
// a competing operation at the exact point a real engine round-trip would
// allow one.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	onCall func(name string)

	boot    protocol.Bootstrap
	open    protocol.OpenResult
	sess    protocol.Session
	panels  protocol.PanelSet
	level   string
	view    protocol.ReaderView
	entries []protocol.CatalogEntry
	recents []protocol.RecentEntry
	jobID   string
}

func (g *fakeGateway) enter(name string) error {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	err := g.errs[name]
	hook := g.onCall
	g.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return err
}

func (g *fakeGateway) callNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) readerCall(name string) (protocol.ReaderView, error) {
	if err := g.enter(name); err != nil {
		return protocol.ReaderView{}, err
	}
	return g.view, nil
}

func (g *fakeGateway) Bootstrap(ctx context.Context) (protocol.Bootstrap, error) {
	if err := g.enter("bootstrap"); err != nil {
		return protocol.Bootstrap{}, err
	}
	return g.boot, nil
}

func (g *fakeGateway) OpenPath(ctx context.Context, path string) (protocol.OpenResult, error) {
	if err := g.enter("open_path"); err != nil {
		return protocol.OpenResult{}, err
	}
	return g.open, nil
}

func (g *fakeGateway) OpenEntry(ctx context.Context, id string) (protocol.OpenResult, error) {
	if err := g.enter("open_entry"); err != nil {
		return protocol.OpenResult{}, err
	}
	return g.open, nil
}

func (g *fakeGateway) OpenText(ctx context.Context, title, text string) (protocol.OpenResult, error) {
	if err := g.enter("open_text"); err != nil {
		return protocol.OpenResult{}, err
	}
	return g.open, nil
}

func (g *fakeGateway) CloseReader(ctx context.Context) (protocol.Session, error) {
	if err := g.enter("close"); err != nil {
		return protocol.Session{}, err
	}
	return g.sess, nil
}

func (g *fakeGateway) ToggleTheme(ctx context.Context) (protocol.Session, error) {
	if err := g.enter("toggle_theme"); err != nil {
		return protocol.Session{}, err
	}
	return g.sess, nil
}

func (g *fakeGateway) TogglePanel(ctx context.Context, p protocol.Panel) (protocol.PanelSet, error) {
	if err := g.enter("toggle_panel"); err != nil {
		return protocol.PanelSet{}, err
	}
	return g.panels, nil
}

func (g *fakeGateway) SetLogLevel(ctx context.Context, level string) (string, error) {
	if err := g.enter("set_log_level"); err != nil {
		return "", err
	}
	if g.level != "" {
		return g.level, nil
	}
	return level, nil
}

func (g *fakeGateway) NextPage(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("next_page")
}

func (g *fakeGateway) PrevPage(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("prev_page")
}

func (g *fakeGateway) SetPage(ctx context.Context, page int) (protocol.ReaderView, error) {
	return g.readerCall("set_page")
}

func (g *fakeGateway) NextSentence(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("next_sentence")
}

func (g *fakeGateway) PrevSentence(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("prev_sentence")
}

func (g *fakeGateway) SelectSentence(ctx context.Context, index int) (protocol.ReaderView, error) {
	return g.readerCall("select_sentence")
}

func (g *fakeGateway) ToggleTextOnly(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("toggle_text_only")
}

func (g *fakeGateway) SetSearch(ctx context.Context, query string) (protocol.ReaderView, error) {
	return g.readerCall("set_search")
}

func (g *fakeGateway) NextMatch(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("next_match")
}

func (g *fakeGateway) PrevMatch(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("prev_match")
}

func (g *fakeGateway) ApplySettings(ctx context.Context, patch protocol.SettingsPatch) (protocol.ReaderView, error) {
	return g.readerCall("apply_settings")
}

func (g *fakeGateway) Play(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("play")
}

func (g *fakeGateway) Pause(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("pause")
}

func (g *fakeGateway) TogglePlayback(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("toggle_playback")
}

func (g *fakeGateway) PlayFromPageStart(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("play_page_start")
}

func (g *fakeGateway) PlayFromHighlight(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("play_highlight")
}

func (g *fakeGateway) SeekNext(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("seek_next")
}

func (g *fakeGateway) SeekPrev(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("seek_prev")
}

func (g *fakeGateway) RepeatSentence(ctx context.Context) (protocol.ReaderView, error) {
	return g.readerCall("repeat")
}

func (g *fakeGateway) PrecomputePage(ctx context.Context) (string, error) {
	if err := g.enter("precompute"); err != nil {
		return "", err
	}
	return g.jobID, nil
}

func (g *fakeGateway) Catalog(ctx context.Context, force bool) ([]protocol.CatalogEntry, error) {
	if err := g.enter("catalog"); err != nil {
		return nil, err
	}
	return g.entries, nil
}

func (g *fakeGateway) Recents(ctx context.Context) ([]protocol.RecentEntry, error) {
	if err := g.enter("recents"); err != nil {
		return nil, err
	}
	return g.recents, nil
}

func (g *fakeGateway) DeleteRecent(ctx context.Context, id string) ([]protocol.RecentEntry, error) {
	if err := g.enter("delete_recent"); err != nil {
		return nil, err
	}
	return g.recents, nil
}

func newTestCoordinator(gw *fakeGateway) (*Coordinator, *state.Store) {
	store := state.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, gw, telemetry.NewLog(16), log), store
}

func readingView(id string) protocol.ReaderView {
	h := 1
	return protocol.ReaderView{
		ResourceID: id,
		Title:      "Walden",
		Page:       3,
		PageCount:  12,
		Sentences:  []string{"one", "two", "three", "four"},
		Highlight:  &h,
		Settings:   protocol.DefaultSettings(),
	}
}

func setReading(store *state.Store, id string) {
	v := readingView(id)
	store.Mutate(func(st *state.State) {
		st.Session.Mode = protocol.ModeReader
		st.Session.ResourceID = id
		st.Reader = v.Clone()
	})
}

func TestRefreshSeedsStore(t *testing.T) {
	v := readingView("doc-1")
	gw := &fakeGateway{boot: protocol.Bootstrap{
		Version: "0.4.2",
		Library: "/books",
		Session: protocol.Session{Mode: protocol.ModeReader, ResourceID: "doc-1", Theme: protocol.ThemeDark},
		Reader:  &v,
		LogLevel: "info",
		Voices:  []string{"en-US-1", "en-GB-2"},
	}}
	c, store := newTestCoordinator(gw)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	st := store.Snapshot()
	if st.EngineVersion != "0.4.2" || st.Library != "/books" {
		t.Fatalf("engine info not seeded: %+v", st)
	}
	if st.Session.Mode != protocol.ModeReader || st.Reader == nil || st.Reader.Title != "Walden" {
		t.Fatalf("session/reader not seeded: %+v", st.Session)
	}
	if len(st.Voices) != 2 {
		t.Fatalf("voices = %v", st.Voices)
	}
	if st.Busy {
		t.Fatal("busy should clear after refresh")
	}
}

func TestOpenPathCommitsResult(t *testing.T) {
	v := readingView("doc-9")
	gw := &fakeGateway{open: protocol.OpenResult{
		Session: protocol.Session{Mode: protocol.ModeReader, ResourceID: "doc-9", Theme: protocol.ThemeDark},
		Reader:  &v,
	}}
	c, store := newTestCoordinator(gw)

	if err := c.OpenPath(context.Background(), "/books/walden.md"); err != nil {
		t.Fatalf("open: %v", err)
	}

	st := store.Snapshot()
	if st.Session.Mode != protocol.ModeReader || st.Session.ResourceID != "doc-9" {
		t.Fatalf("session = %+v", st.Session)
	}
	if st.Session.Opening {
		t.Fatal("opening flag should clear on commit")
	}
	if st.Reader == nil || st.Reader.ResourceID != "doc-9" {
		t.Fatalf("reader = %+v", st.Reader)
	}
	if st.Open.Phase != protocol.PhaseReady || st.Open.Title != "Walden" {
		t.Fatalf("open status = %+v", st.Open)
	}
}

func TestOpenFailureRestoresSnapshot(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{
		"open_path": protocol.Errf(protocol.CodeNotFound, "no such file"),
	}}
	c, store := newTestCoordinator(gw)

	err := c.OpenPath(context.Background(), "/books/missing.md")
	if !protocol.IsCode(err, protocol.CodeNotFound) {
		t.Fatalf("err = %v", err)
	}

	st := store.Snapshot()
	if st.Session.Mode != protocol.ModeStarter || st.Session.Opening {
		t.Fatalf("session not restored: %+v", st.Session)
	}
	if st.Reader != nil {
		t.Fatal("reader should stay nil")
	}
	if st.LastError == "" {
		t.Fatal("failure should surface as store error")
	}
	if st.Notice == nil || st.Notice.Kind != state.NoticeError {
		t.Fatalf("notice = %+v", st.Notice)
	}
	last, ok := c.Telemetry().Last()
	if !ok || last.OK || last.Action != "open_path" {
		t.Fatalf("telemetry = %+v", last)
	}
}

func TestOpenCancelledKeepsErrorClear(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{
		"open_path": protocol.Errf(protocol.CodeOpenCancelled, "superseded"),
	}}
	c, store := newTestCoordinator(gw)

	err := c.OpenPath(context.Background(), "/books/slow.md")
	if !protocol.IsCode(err, protocol.CodeOpenCancelled) {
		t.Fatalf("err = %v", err)
	}

	st := store.Snapshot()
	if st.LastError != "" {
		t.Fatalf("cancel must not set error, got %q", st.LastError)
	}
	if st.Notice == nil || st.Notice.Kind != state.NoticeInfo {
		t.Fatalf("notice = %+v", st.Notice)
	}
}

func TestCloseWithoutReaderSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(gw)

	if err := c.CloseReader(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if calls := gw.callNames(); len(calls) != 0 {
		t.Fatalf("unexpected calls %v", calls)
	}
	last, ok := c.Telemetry().Last()
	if !ok || last.Action != "close" || !last.OK {
		t.Fatalf("telemetry = %+v", last)
	}
}

// A close issued while an open is still on the wire must win: the open's
// late result may not resurrect the reader.
func TestCloseSupersedesInFlightOpen(t *testing.T) {
	v := readingView("doc-2")
	gw := &fakeGateway{
		open: protocol.OpenResult{
			Session: protocol.Session{Mode: protocol.ModeReader, ResourceID: "doc-2"},
			Reader:  &v,
		},
		sess: protocol.Session{Mode: protocol.ModeStarter, Theme: protocol.ThemeDark},
		errs: map[string]error{
			"open_path": protocol.Errf(protocol.CodeOpenCancelled, "closed while opening"),
		},
	}
	c, store := newTestCoordinator(gw)
	gw.onCall = func(name string) {
		if name == "open_path" {
			gw.mu.Lock()
			gw.onCall = nil
			gw.mu.Unlock()
			if err := c.CloseReader(context.Background()); err != nil {
				t.Errorf("close: %v", err)
			}
		}
	}

	err := c.OpenPath(context.Background(), "/books/slow.md")
	if !protocol.IsCode(err, protocol.CodeOpenCancelled) {
		t.Fatalf("err = %v", err)
	}

	st := store.Snapshot()
	if st.Session.Mode != protocol.ModeStarter || st.Reader != nil {
		t.Fatalf("close result clobbered: %+v", st.Session)
	}
	if st.Session.Opening {
		t.Fatal("opening flag survived the close")
	}
	if st.LastError != "" {
		t.Fatalf("cancelled open set error %q", st.LastError)
	}
	calls := gw.callNames()
	if len(calls) != 2 || calls[0] != "open_path" || calls[1] != "close" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestToggleThemeStagesAndCommits(t *testing.T) {
	gw := &fakeGateway{sess: protocol.Session{Theme: protocol.ThemeLight}}
	c, store := newTestCoordinator(gw)

	var staged string
	gw.onCall = func(name string) {
		staged = store.Snapshot().Session.Theme
	}

	if err := c.ToggleTheme(context.Background()); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if staged != protocol.ThemeLight {
		t.Fatalf("theme not staged before call, saw %q", staged)
	}
	if got := store.Snapshot().Session.Theme; got != protocol.ThemeLight {
		t.Fatalf("theme = %q", got)
	}
}

func TestToggleThemeRollsBack(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{"toggle_theme": errors.New("engine down")}}
	c, store := newTestCoordinator(gw)

	if err := c.ToggleTheme(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := store.Snapshot()
	if st.Session.Theme != protocol.ThemeDark {
		t.Fatalf("theme not restored: %q", st.Session.Theme)
	}
	if st.LastError == "" {
		t.Fatal("error should surface")
	}
}

func TestTogglePanelMirrorsIntoReader(t *testing.T) {
	gw := &fakeGateway{panels: protocol.PanelSet{Settings: true}}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	if err := c.TogglePanel(context.Background(), protocol.PanelSettings); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	st := store.Snapshot()
	if !st.Session.Panels.Settings {
		t.Fatalf("session panels = %+v", st.Session.Panels)
	}
	if st.Reader == nil || !st.Reader.Panels.Settings {
		t.Fatalf("reader panels = %+v", st.Reader)
	}
}

func TestSetLogLevelRejectsUnknownLocally(t *testing.T) {
	gw := &fakeGateway{}
	c, store := newTestCoordinator(gw)

	if err := c.SetLogLevel(context.Background(), "chatty"); err == nil {
		t.Fatal("expected parse error")
	}
	if calls := gw.callNames(); len(calls) != 0 {
		t.Fatalf("gateway reached with bad level: %v", calls)
	}
	if got := store.Snapshot().LogLevel; got != "info" {
		t.Fatalf("level = %q", got)
	}
}

func TestReaderOpRequiresReader(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newTestCoordinator(gw)

	if err := c.NextPage(context.Background()); err != nil {
		t.Fatalf("next page: %v", err)
	}
	if calls := gw.callNames(); len(calls) != 0 {
		t.Fatalf("gateway reached without reader: %v", calls)
	}
}

func TestNextSentenceStagesHighlight(t *testing.T) {
	gw := &fakeGateway{view: readingView("doc-1")}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	staged := -1
	gw.onCall = func(name string) {
		st := store.Snapshot()
		if st.Reader != nil && st.Reader.Highlight != nil {
			staged = *st.Reader.Highlight
		}
	}

	if err := c.NextSentence(context.Background()); err != nil {
		t.Fatalf("next sentence: %v", err)
	}
	if staged != 2 {
		t.Fatalf("highlight staged = %d, want 2", staged)
	}
}

func TestReaderFailureRestoresView(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{"next_sentence": errors.New("engine down")}}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	if err := c.NextSentence(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := store.Snapshot()
	if st.Reader == nil || st.Reader.Highlight == nil || *st.Reader.Highlight != 1 {
		t.Fatalf("view not restored: %+v", st.Reader)
	}
	if st.LastError == "" {
		t.Fatal("error should surface")
	}
}

// A reader-view result that lands after the session left reader mode is
// discarded rather than resurrecting a closed view.
func TestReaderCommitDroppedAfterModeChange(t *testing.T) {
	gw := &fakeGateway{view: readingView("doc-1")}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	gw.onCall = func(name string) {
		store.Mutate(func(st *state.State) {
			st.Session.Mode = protocol.ModeStarter
			st.Session.ResourceID = ""
			st.Reader = nil
		})
	}

	if err := c.NextPage(context.Background()); err != nil {
		t.Fatalf("next page: %v", err)
	}
	if st := store.Snapshot(); st.Reader != nil {
		t.Fatalf("stale view resurrected: %+v", st.Reader)
	}
}

func TestApplySettingsZeroPatchSkipsGateway(t *testing.T) {
	gw := &fakeGateway{}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	if err := c.ApplySettings(context.Background(), protocol.SettingsPatch{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if calls := gw.callNames(); len(calls) != 0 {
		t.Fatalf("empty patch reached gateway: %v", calls)
	}
}

func TestOverlappingSettingsPatchesKeepNewest(t *testing.T) {
	gw := &fakeGateway{}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	slow, fast := 1.5, 2.0
	gw.onCall = func(name string) {
		// While the first patch is at the gateway, a second patch for
		// the same field runs to completion.
		second := readingView("doc-1")
		second.Settings.SpeechRate = fast
		gw.mu.Lock()
		gw.onCall = nil
		gw.view = second
		gw.mu.Unlock()
		if err := c.ApplySettings(context.Background(), protocol.SettingsPatch{SpeechRate: &fast}); err != nil {
			t.Errorf("second patch: %v", err)
		}
		// The first call then resolves with its own, now stale, result.
		stale := readingView("doc-1")
		stale.Settings.SpeechRate = slow
		gw.mu.Lock()
		gw.view = stale
		gw.mu.Unlock()
	}

	if err := c.ApplySettings(context.Background(), protocol.SettingsPatch{SpeechRate: &slow}); err != nil {
		t.Fatalf("first patch: %v", err)
	}

	st := store.Snapshot()
	if st.Reader == nil {
		t.Fatal("reader cleared")
	}
	if got := st.Reader.Settings.SpeechRate; got != fast {
		t.Fatalf("speech rate = %v, want the newer patch's %v", got, fast)
	}
	if calls := gw.callNames(); len(calls) != 2 || calls[0] != "apply_settings" || calls[1] != "apply_settings" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestSetSearchClearsStaleMatches(t *testing.T) {
	result := readingView("doc-1")
	result.Search = protocol.SearchState{Query: "pond", Matches: []int{2, 7}, Active: 0}
	gw := &fakeGateway{view: result}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")
	store.Mutate(func(st *state.State) {
		st.Reader.Search = protocol.SearchState{Query: "ice", Matches: []int{1}, Active: 0}
	})

	var staged protocol.SearchState
	gw.onCall = func(name string) {
		staged = store.Snapshot().Reader.Search
	}

	if err := c.SetSearch(context.Background(), "pond"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if staged.Query != "pond" || staged.Matches != nil || staged.Active != -1 {
		t.Fatalf("stale matches survived staging: %+v", staged)
	}
	st := store.Snapshot()
	if len(st.Reader.Search.Matches) != 2 || st.Reader.Search.Active != 0 {
		t.Fatalf("result not committed: %+v", st.Reader.Search)
	}
}

func TestDeleteRecentRollsBack(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{"delete_recent": errors.New("engine down")}}
	c, store := newTestCoordinator(gw)
	store.SetRecents([]protocol.RecentEntry{
		{ResourceID: "a", Title: "Alpha"},
		{ResourceID: "b", Title: "Beta"},
	})

	var staged int
	gw.onCall = func(name string) {
		staged = len(store.Snapshot().Recents)
	}

	if err := c.DeleteRecent(context.Background(), "a"); err == nil {
		t.Fatal("expected error")
	}
	if staged != 1 {
		t.Fatalf("optimistic delete not staged, saw %d entries", staged)
	}
	st := store.Snapshot()
	if len(st.Recents) != 2 || st.Recents[0].ResourceID != "a" {
		t.Fatalf("recents not restored: %+v", st.Recents)
	}
}

func TestPrecomputeLeavesJobRowsToFeed(t *testing.T) {
	gw := &fakeGateway{jobID: "job-42"}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	if err := c.PrecomputePage(context.Background()); err != nil {
		t.Fatalf("precompute: %v", err)
	}
	if calls := gw.callNames(); len(calls) != 1 || calls[0] != "precompute" {
		t.Fatalf("calls = %v", calls)
	}
	// Job rows come from the job channel only.
	if jobs := store.Snapshot().Jobs; len(jobs) != 0 {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestPrecomputeNoopOutsideReader(t *testing.T) {
	gw := &fakeGateway{jobID: "job-42"}
	c, _ := newTestCoordinator(gw)

	if err := c.PrecomputePage(context.Background()); err != nil {
		t.Fatalf("precompute: %v", err)
	}
	if calls := gw.callNames(); len(calls) != 0 {
		t.Fatalf("gateway called with no open document: %v", calls)
	}
}

func TestLoadCatalogCommitsEntries(t *testing.T) {
	gw := &fakeGateway{entries: []protocol.CatalogEntry{
		{ID: "1", Title: "Walden"},
		{ID: "2", Title: "Meditations"},
	}}
	c, store := newTestCoordinator(gw)

	if err := c.LoadCatalog(context.Background(), false); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := store.Snapshot()
	if len(st.Entries) != 2 {
		t.Fatalf("entries = %+v", st.Entries)
	}
	if st.Catalog.Phase != protocol.PhaseFinished || st.Catalog.Count != 2 {
		t.Fatalf("status = %+v", st.Catalog)
	}
}

func TestBusyCoversOverlappingCalls(t *testing.T) {
	gw := &fakeGateway{}
	c, store := newTestCoordinator(gw)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	gw.onCall = func(name string) {
		entered <- struct{}{}
		<-release
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Refresh(context.Background())
		}()
	}
	<-entered
	<-entered
	if !store.Snapshot().Busy {
		t.Fatal("busy should hold while calls are in flight")
	}
	close(release)
	wg.Wait()
	if store.Snapshot().Busy {
		t.Fatal("busy should clear when the last call ends")
	}
}

func TestTelemetryRecordsEveryOutcome(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{"next_page": errors.New("engine down")}}
	c, store := newTestCoordinator(gw)
	setReading(store, "doc-1")

	c.PrevPage(context.Background())
	c.NextPage(context.Background())

	recs := c.Telemetry().Records()
	if len(recs) != 2 {
		t.Fatalf("records = %d", len(recs))
	}
	if !recs[0].OK || recs[0].Action != "prev_page" {
		t.Fatalf("first record = %+v", recs[0])
	}
	if recs[1].OK || recs[1].Err == "" {
		t.Fatalf("second record = %+v", recs[1])
	}
}
