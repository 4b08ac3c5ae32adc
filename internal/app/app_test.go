package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/client"
	"github.com/sguzman/lantern-leaf-sub000/internal/engine"
	"github.com/sguzman/lantern-leaf-sub000/internal/fence"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// newTestApp wires a real in-process engine behind the app, the way embedded
// mode does.
func newTestApp(t *testing.T) (Model, *client.Local) {
	t.Helper()

	dir := t.TempDir()
	text := "First sentence here. Second sentence follows. Third one ends."
	if err := os.WriteFile(filepath.Join(dir, "Walden.txt"), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	local := client.NewLocal()
	eng := engine.New(engine.Options{LibraryDir: dir, NarratorWPM: 1}, local, discardLogger())

	store := state.NewStore()
	fc := fence.New(store, discardLogger())
	co := action.New(store, eng, nil, discardLogger())

	m := New(local, co, store, fc)
	tm, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return tm.(Model), local
}

// pumpEvents admits every envelope the engine has emitted so far.
func pumpEvents(t *testing.T, m Model, local *client.Local) Model {
	t.Helper()
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		msg := local.ReadLoop(ctx)()
		cancel()
		if _, ok := msg.(client.FeedEnvelopeMsg); !ok {
			return m
		}
		tm, _ := m.Update(msg)
		m = tm.(Model)
	}
}

// step runs one view-dispatched command and feeds its result back.
func step(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command to run")
	}
	tm, _ := m.Update(cmd())
	return tm.(Model)
}

func TestOpenReadCloseFlow(t *testing.T) {
	m, local := newTestApp(t)

	tm, _ := m.Update(client.FeedConnectedMsg{})
	m = tm.(Model)
	if !m.st.Connected {
		t.Fatal("connect should mark the store connected")
	}

	m = step(t, m, m.refreshCmd())
	m = pumpEvents(t, m, local)
	if len(m.st.Entries) != 1 || m.st.Entries[0].Title != "Walden" {
		t.Fatalf("catalog after refresh = %+v", m.st.Entries)
	}

	// Enter on the only catalog row opens it.
	tm, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, tm.(Model), cmd)
	m = pumpEvents(t, m, local)
	if !m.st.Session.Reading() {
		t.Fatal("open should land in reader mode")
	}
	if m.st.Reader == nil || m.st.Reader.Title != "Walden" {
		t.Fatalf("reader = %+v", m.st.Reader)
	}

	// j selects the first sentence.
	tm, cmd = m.Update(keyRunes("j"))
	m = step(t, tm.(Model), cmd)
	m = pumpEvents(t, m, local)
	if m.st.Reader.Highlight == nil || *m.st.Reader.Highlight != 0 {
		t.Fatalf("highlight = %v, want 0", m.st.Reader.Highlight)
	}

	v := m.View()
	if !strings.Contains(v, "First sentence here.") {
		t.Error("reader view should show the page")
	}
	if !strings.Contains(v, "online") {
		t.Error("status bar should show the connection")
	}

	// Esc with no search closes the reader.
	tm, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = step(t, tm.(Model), cmd)
	m = pumpEvents(t, m, local)
	if m.st.Session.Reading() {
		t.Fatal("esc should return to the starter")
	}
}

func TestThemeToggleKey(t *testing.T) {
	m, _ := newTestApp(t)

	tm, cmd := m.Update(keyRunes("t"))
	m = step(t, tm.(Model), cmd)
	if m.st.Session.Theme != protocol.ThemeLight {
		t.Errorf("theme = %q, want light", m.st.Session.Theme)
	}

	tm, cmd = m.Update(keyRunes("t"))
	m = step(t, tm.(Model), cmd)
	if m.st.Session.Theme != protocol.ThemeDark {
		t.Errorf("theme = %q, want dark again", m.st.Session.Theme)
	}
}

func TestLogLevelKeyCycles(t *testing.T) {
	m, _ := newTestApp(t)
	if m.st.LogLevel != "info" {
		t.Fatalf("initial level = %q", m.st.LogLevel)
	}

	tm, cmd := m.Update(keyRunes("L"))
	m = step(t, tm.(Model), cmd)
	if m.st.LogLevel != "warn" {
		t.Errorf("level = %q, want warn", m.st.LogLevel)
	}
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestApp(t)
	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should produce the quit message")
	}
}

func TestTypingSuppressesGlobalKeys(t *testing.T) {
	m, _ := newTestApp(t)

	tm, _ := m.Update(keyRunes("/"))
	m = tm.(Model)
	if !m.typing() {
		t.Fatal("/ should enter the starter filter")
	}

	_, cmd := m.Update(keyRunes("q"))
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Error("q while typing must go to the input, not quit")
		}
	}
}

func TestPanelKeysOnlyInReader(t *testing.T) {
	m, _ := newTestApp(t)

	// In starter mode the panel keys fall through to the starter view,
	// which has no binding for them.
	if _, cmd := m.Update(keyRunes("i")); cmd != nil {
		t.Error("stats key should be inert in starter mode")
	}
}

func TestDisconnectShowsReconnecting(t *testing.T) {
	m, _ := newTestApp(t)

	tm, _ := m.Update(client.FeedConnectedMsg{})
	m = tm.(Model)
	tm, cmd := m.Update(client.FeedDisconnectedMsg{Err: io.EOF})
	m = tm.(Model)
	if cmd == nil {
		t.Error("disconnect should schedule a reconnect")
	}
	if m.st.Connected {
		t.Error("disconnect should clear the connected flag")
	}
	if !strings.Contains(m.View(), "connecting") {
		t.Error("status bar should show the reconnect state")
	}
}

func TestNoticeTickOncePerNotice(t *testing.T) {
	m, _ := newTestApp(t)

	m.store.Notify(state.NoticeError, "something broke")
	tm, cmd := m.Update(actionDoneMsg{})
	m = tm.(Model)
	if cmd == nil {
		t.Fatal("a fresh notice should schedule an expiry tick")
	}
	if !strings.Contains(m.View(), "something broke") {
		t.Error("notice should render")
	}

	if _, cmd := m.Update(actionDoneMsg{}); cmd != nil {
		t.Error("the same notice should not schedule twice")
	}
}

func TestNextLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "info"},
		{"info", "warn"},
		{"warn", "error"},
		{"error", "debug"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		if got := nextLogLevel(tt.in); got != tt.want {
			t.Errorf("nextLogLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestViewBeforeFirstSize(t *testing.T) {
	local := client.NewLocal()
	store := state.NewStore()
	fc := fence.New(store, discardLogger())
	co := action.New(store, nil, nil, discardLogger())
	m := New(local, co, store, fc)
	if m.View() != "Initializing..." {
		t.Errorf("zero-size view = %q", m.View())
	}
}
