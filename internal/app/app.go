// Package app is the root Bubble Tea model: it owns the event feed, admits
// envelopes through the fence, issues mutations through the coordinator, and
// pushes store snapshots into the starter, reader and status views.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/client"
	"github.com/sguzman/lantern-leaf-sub000/internal/fence"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
	"github.com/sguzman/lantern-leaf-sub000/internal/theme"
	"github.com/sguzman/lantern-leaf-sub000/internal/views/reader"
	"github.com/sguzman/lantern-leaf-sub000/internal/views/starter"
	"github.com/sguzman/lantern-leaf-sub000/internal/views/status"
)

// EventFeed is the app's handle on the engine event stream. Satisfied by the
// websocket feed and by the in-process bridge in embedded mode.
type EventFeed interface {
	Listen(ctx context.Context) tea.Cmd
	ReadLoop(ctx context.Context) tea.Cmd
	Close()
}

type actionDoneMsg struct{}
type refreshDoneMsg struct{}
type noticeTickMsg struct{}

// logLevels is the cycle order for the log level key.
var logLevels = []string{"debug", "info", "warn", "error"}

// statusHeight is the screen rows reserved for the status bar and its
// notice line.
const statusHeight = 2

// Model is the root Bubble Tea model.
type Model struct {
	feed  EventFeed
	co    *action.Coordinator
	store *state.Store
	fence *fence.Fence

	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	st      state.State
	palette theme.Palette
	spin    spinner.Model

	statusBar status.Model
	starter   starter.Model
	reader    reader.Model

	// noticeSeen dedupes expiry ticks per notice.
	noticeSeen time.Time
}

// New creates the root model.
func New(feed EventFeed, co *action.Coordinator, store *state.Store, fc *fence.Fence) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		feed:      feed,
		co:        co,
		store:     store,
		fence:     fc,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		palette:   theme.Dark,
		spin:      spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		statusBar: status.New(),
		starter:   starter.New(co, ctx),
		reader:    reader.New(co, ctx),
	}
	m.syncFromStore()
	return m
}

// Init starts the event feed and the busy spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.feed.Listen(m.ctx), m.spin.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.starter.SetSize(msg.Width, msg.Height-statusHeight)
		m.reader.SetSize(msg.Width, msg.Height-statusHeight)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.statusBar.SpinnerFrame = m.spin.View()
		return m, cmd

	case client.FeedConnectedMsg:
		m.store.SetConnected(true)
		// A fresh connection restarts the engine's sequence stream; stale
		// watermarks would fence out everything it sends.
		m.fence.Reset()
		m.syncFromStore()
		return m, tea.Batch(m.refreshCmd(), m.feed.ReadLoop(m.ctx))

	case client.FeedDisconnectedMsg:
		m.store.SetConnected(false)
		m.syncFromStore()
		return m, m.feed.Listen(m.ctx)

	case client.FeedEnvelopeMsg:
		m.fence.Admit(msg.Env)
		m.syncFromStore()
		return m, tea.Batch(m.feed.ReadLoop(m.ctx), m.noticeTick())

	case starter.ActionDoneMsg, reader.ActionDoneMsg, actionDoneMsg, refreshDoneMsg:
		m.syncFromStore()
		return m, m.noticeTick()

	case noticeTickMsg:
		m.syncFromStore()
		return m, nil
	}

	// Everything else is view-internal: input blinks, scroll ticks.
	return m.routeMsg(msg)
}

func (m Model) routeMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.starter, cmd = m.starter.Update(msg)
	cmds = append(cmds, cmd)
	m.reader, cmd = m.reader.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.typing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			m.feed.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Theme):
			return m, m.dispatch(m.co.ToggleTheme)

		case key.Matches(msg, m.keys.LogLevel):
			next := nextLogLevel(m.st.LogLevel)
			return m, m.dispatch(func(ctx context.Context) error {
				return m.co.SetLogLevel(ctx, next)
			})

		case key.Matches(msg, m.keys.Settings):
			if m.st.Session.Reading() {
				return m, m.togglePanel(protocol.PanelSettings)
			}

		case key.Matches(msg, m.keys.Stats):
			if m.st.Session.Reading() {
				return m, m.togglePanel(protocol.PanelStats)
			}

		case key.Matches(msg, m.keys.TTS):
			if m.st.Session.Reading() {
				return m, m.togglePanel(protocol.PanelTTS)
			}
		}
	}

	var cmd tea.Cmd
	if m.st.Session.Reading() {
		m.reader, cmd = m.reader.Update(msg)
	} else {
		m.starter, cmd = m.starter.Update(msg)
	}
	return m, cmd
}

func (m Model) typing() bool {
	if m.st.Session.Reading() {
		return m.reader.Typing()
	}
	return m.starter.Typing()
}

func (m Model) dispatch(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return actionDoneMsg{}
	}
}

func (m Model) togglePanel(panel protocol.Panel) tea.Cmd {
	return m.dispatch(func(ctx context.Context) error {
		return m.co.TogglePanel(ctx, panel)
	})
}

// refreshCmd pulls the bootstrap snapshot and the library listings after a
// connect.
func (m Model) refreshCmd() tea.Cmd {
	ctx, co := m.ctx, m.co
	return func() tea.Msg {
		if err := co.Refresh(ctx); err != nil {
			return refreshDoneMsg{}
		}
		_ = co.LoadCatalog(ctx, false)
		_ = co.LoadRecents(ctx)
		return refreshDoneMsg{}
	}
}

// noticeTick schedules one re-render just past the current notice's expiry.
func (m *Model) noticeTick() tea.Cmd {
	n := m.st.Notice
	if n == nil || n.At.Equal(m.noticeSeen) {
		return nil
	}
	m.noticeSeen = n.At
	remain := status.NoticeTTL - time.Since(n.At) + 100*time.Millisecond
	if remain < 0 {
		remain = 100 * time.Millisecond
	}
	return tea.Tick(remain, func(time.Time) tea.Msg {
		return noticeTickMsg{}
	})
}

func nextLogLevel(current string) string {
	for i, l := range logLevels {
		if l == current {
			return logLevels[(i+1)%len(logLevels)]
		}
	}
	return "info"
}

// syncFromStore snapshots the store and pushes the pieces each view renders.
func (m *Model) syncFromStore() {
	st := m.store.Snapshot()
	m.st = st

	name := st.Session.Theme
	m.palette = theme.ForTheme(name)

	sb := &m.statusBar
	sb.Palette = m.palette
	sb.Connected = st.Connected
	sb.Busy = st.Busy
	sb.Reading = st.Session.Reading()
	sb.LogLevel = st.LogLevel
	sb.Version = st.EngineVersion
	sb.Notice = st.Notice
	if st.Reader != nil {
		sb.Title = st.Reader.Title
		sb.Page = st.Reader.Page
		sb.PageCount = st.Reader.PageCount
		sb.Playback = string(st.Reader.Playback.State)
		sb.Voice = st.Reader.Playback.Voice
		sb.Rate = st.Reader.Playback.Rate
	} else {
		sb.Title, sb.Page, sb.PageCount = "", 0, 0
		sb.Playback, sb.Voice, sb.Rate = "", "", 0
	}

	m.starter.SetPalette(m.palette)
	m.starter.SetData(st.Entries, st.Recents, st.Catalog, st.Open, st.Busy)
	m.reader.SetTheme(name)
	m.reader.SetData(st.Reader, st.Voices, st.Jobs)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	if m.st.Session.Reading() {
		body = m.reader.View()
	} else {
		body = m.starter.View()
	}

	bar := m.statusBar.View()
	bodyHeight := m.height - lipgloss.Height(bar)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, body, bar)
}
