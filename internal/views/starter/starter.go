// Package starter provides the library view shown outside reader mode: the
// catalog listing with filtering, sorting and windowed scrolling, the
// recents list, and the open-by-path and paste-text flows.
package starter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/state"
	"github.com/sguzman/lantern-leaf-sub000/internal/theme"
	"github.com/sguzman/lantern-leaf-sub000/internal/window"
)

// ActionDoneMsg is returned after a coordinator call finishes. Outcomes land
// in the store; the message only prompts a fresh snapshot.
type ActionDoneMsg struct{}

type scrollTickMsg time.Time

const scrollFPS = 30

// overscan rows rendered beyond the viewport so spring scrolling never tears.
const overscan = 2

type section int

const (
	sectionCatalog section = iota
	sectionRecents
)

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeOpenPath
	modePasteTitle
	modePasteBody
)

// KeyMap holds the starter-specific key bindings.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Enter        key.Binding
	Tab          key.Binding
	Filter       key.Binding
	OpenPath     key.Binding
	Paste        key.Binding
	Rescan       key.Binding
	DeleteRecent key.Binding
	Sort         key.Binding
	Escape       key.Binding
}

// DefaultKeyMap returns the default starter bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "catalog/recents"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		OpenPath: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open path"),
		),
		Paste: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "paste text"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		DeleteRecent: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "remove recent"),
		),
		Sort: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "sort"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model is the starter view model.
type Model struct {
	co   *action.Coordinator
	ctx  context.Context
	keys KeyMap

	palette theme.Palette
	width   int
	height  int

	// Data pushed from the store on every snapshot.
	entries []protocol.CatalogEntry
	recents []protocol.RecentEntry
	catalog state.CatalogStatus
	open    state.OpenStatus
	busy    bool

	section   section
	mode      mode
	cursorCat int
	cursorRec int
	sortMode  window.SortMode

	// Spring-animated scroll offset for the catalog listing.
	spring    harmonica.Spring
	scrollPos float64
	scrollVel float64
	target    int
	animating bool

	filter     textinput.Model
	pathInput  textinput.Model
	titleInput textinput.Model
	body       textarea.Model
}

// New creates a starter model issuing its calls through co under ctx.
func New(co *action.Coordinator, ctx context.Context) Model {
	filter := textinput.New()
	filter.Placeholder = "filter title or author"
	filter.CharLimit = 64

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/document.md"
	pathInput.CharLimit = 512

	titleInput := textinput.New()
	titleInput.Placeholder = "title for the pasted text"
	titleInput.CharLimit = 128

	body := textarea.New()
	body.Placeholder = "paste or type text, ctrl+d to open"
	body.CharLimit = 0

	return Model{
		co:         co,
		ctx:        ctx,
		keys:       DefaultKeyMap(),
		palette:    theme.Dark,
		spring:     harmonica.NewSpring(harmonica.FPS(scrollFPS), 7.0, 0.85),
		filter:     filter,
		pathInput:  pathInput,
		titleInput: titleInput,
		body:       body,
	}
}

// SetPalette restyles the view for a theme change.
func (m *Model) SetPalette(p theme.Palette) {
	m.palette = p
}

// SetSize updates the available rendering area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.body.SetWidth(min(width-4, 100))
	m.body.SetHeight(max(height-10, 3))
}

// SetData replaces the store-backed fields.
func (m *Model) SetData(entries []protocol.CatalogEntry, recents []protocol.RecentEntry, catalog state.CatalogStatus, open state.OpenStatus, busy bool) {
	m.entries = entries
	m.recents = recents
	m.catalog = catalog
	m.open = open
	m.busy = busy
	m.clampCursors()
}

// Typing reports whether keystrokes belong to a text field right now.
func (m Model) Typing() bool {
	return m.mode != modeBrowse
}

func (m Model) cmd(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		// Failures are folded into the store by the coordinator; the app
		// re-snapshots on ActionDoneMsg either way.
		_ = fn(ctx)
		return ActionDoneMsg{}
	}
}

func scrollTick() tea.Cmd {
	return tea.Tick(time.Second/scrollFPS, func(t time.Time) tea.Msg {
		return scrollTickMsg(t)
	})
}

// visibleEntries returns the filtered, sorted catalog listing.
func (m Model) visibleEntries() []protocol.CatalogEntry {
	filtered := window.FilterEntries(m.entries, m.filter.Value())
	out := make([]protocol.CatalogEntry, len(filtered))
	copy(out, filtered)
	window.SortEntries(out, m.sortMode)
	return out
}

func (m *Model) clampCursors() {
	if n := len(m.visibleEntries()); m.cursorCat >= n {
		m.cursorCat = max(n-1, 0)
	}
	if n := len(m.recents); m.cursorRec >= n {
		m.cursorRec = max(n-1, 0)
	}
}

// listHeight is the number of catalog rows that fit on screen.
func (m Model) listHeight() int {
	h := m.height - 10 - min(len(m.recents), 5)
	if h < 3 {
		h = 3
	}
	return h
}

// follow retargets the scroll spring so the cursor stays in view.
func (m *Model) follow() tea.Cmd {
	h := m.listHeight()
	target := m.target
	if m.cursorCat < target {
		target = m.cursorCat
	}
	if m.cursorCat >= target+h {
		target = m.cursorCat - h + 1
	}
	if target == m.target {
		return nil
	}
	m.target = target
	if m.animating {
		return nil
	}
	m.animating = true
	return scrollTick()
}

// Update handles starter messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scrollTickMsg:
		m.scrollPos, m.scrollVel = m.spring.Update(m.scrollPos, m.scrollVel, float64(m.target))
		if diff := m.scrollPos - float64(m.target); diff < 0.01 && diff > -0.01 && m.scrollVel < 0.01 && m.scrollVel > -0.01 {
			m.scrollPos = float64(m.target)
			m.scrollVel = 0
			m.animating = false
			return m, nil
		}
		return m, scrollTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blink and other input-internal messages.
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.mode {
	case modeFilter:
		m.filter, cmd = m.filter.Update(msg)
	case modeOpenPath:
		m.pathInput, cmd = m.pathInput.Update(msg)
	case modePasteTitle:
		m.titleInput, cmd = m.titleInput.Update(msg)
	case modePasteBody:
		m.body, cmd = m.body.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeFilter:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.filter.SetValue("")
			m.filter.Blur()
			m.mode = modeBrowse
			m.clampCursors()
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			m.filter.Blur()
			m.mode = modeBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.clampCursors()
		return m, cmd

	case modeOpenPath:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.pathInput.Blur()
			m.mode = modeBrowse
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			path := strings.TrimSpace(m.pathInput.Value())
			m.pathInput.SetValue("")
			m.pathInput.Blur()
			m.mode = modeBrowse
			if path == "" {
				return m, nil
			}
			return m, m.cmd(func(ctx context.Context) error {
				return m.co.OpenPath(ctx, path)
			})
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd

	case modePasteTitle:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.titleInput.Blur()
			m.mode = modeBrowse
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			m.titleInput.Blur()
			m.mode = modePasteBody
			return m, m.body.Focus()
		}
		var cmd tea.Cmd
		m.titleInput, cmd = m.titleInput.Update(msg)
		return m, cmd

	case modePasteBody:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.body.Blur()
			m.mode = modeBrowse
			return m, nil
		case msg.Type == tea.KeyCtrlD:
			title := strings.TrimSpace(m.titleInput.Value())
			text := m.body.Value()
			m.body.Blur()
			m.body.SetValue("")
			m.titleInput.SetValue("")
			m.mode = modeBrowse
			return m, m.cmd(func(ctx context.Context) error {
				return m.co.OpenText(ctx, title, text)
			})
		}
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}

	return m.handleBrowseKey(msg)
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.section == sectionCatalog {
			if n := len(m.visibleEntries()); n > 0 {
				m.cursorCat = (m.cursorCat + 1) % n
			}
			return m, m.follow()
		}
		if n := len(m.recents); n > 0 {
			m.cursorRec = (m.cursorRec + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.section == sectionCatalog {
			if n := len(m.visibleEntries()); n > 0 {
				m.cursorCat = (m.cursorCat - 1 + n) % n
			}
			return m, m.follow()
		}
		if n := len(m.recents); n > 0 {
			m.cursorRec = (m.cursorRec - 1 + n) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.section == sectionCatalog {
			m.section = sectionRecents
		} else {
			m.section = sectionCatalog
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.section == sectionCatalog {
			visible := m.visibleEntries()
			if m.cursorCat >= len(visible) {
				return m, nil
			}
			id := visible[m.cursorCat].ID
			return m, m.cmd(func(ctx context.Context) error {
				return m.co.OpenEntry(ctx, id)
			})
		}
		if m.cursorRec >= len(m.recents) {
			return m, nil
		}
		path := m.recents[m.cursorRec].Path
		if path == "" {
			// Pasted text is gone once closed; nothing to reopen.
			return m, nil
		}
		return m, m.cmd(func(ctx context.Context) error {
			return m.co.OpenPath(ctx, path)
		})

	case key.Matches(msg, m.keys.Filter):
		m.mode = modeFilter
		m.section = sectionCatalog
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.OpenPath):
		m.mode = modeOpenPath
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keys.Paste):
		m.mode = modePasteTitle
		return m, m.titleInput.Focus()

	case key.Matches(msg, m.keys.Rescan):
		return m, m.cmd(func(ctx context.Context) error {
			if err := m.co.LoadCatalog(ctx, true); err != nil {
				return err
			}
			return m.co.LoadRecents(ctx)
		})

	case key.Matches(msg, m.keys.DeleteRecent):
		if m.section != sectionRecents || m.cursorRec >= len(m.recents) {
			return m, nil
		}
		id := m.recents[m.cursorRec].ResourceID
		return m, m.cmd(func(ctx context.Context) error {
			return m.co.DeleteRecent(ctx, id)
		})

	case key.Matches(msg, m.keys.Sort):
		m.sortMode = m.sortMode.Next()
		return m, nil
	}

	return m, nil
}

// View renders the starter screen.
func (m Model) View() string {
	p := m.palette

	header := p.Title().Render("Lantern Leaf") + p.Dim().Render("  — a reading lamp for your terminal")

	var sections []string
	sections = append(sections, header, "")

	if banner := m.openBanner(); banner != "" {
		sections = append(sections, banner, "")
	}

	switch m.mode {
	case modeOpenPath:
		sections = append(sections, p.Header().Render("Open by path"), m.pathInput.View(), "",
			p.Dim().Render("enter: open  esc: cancel"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	case modePasteTitle:
		sections = append(sections, p.Header().Render("Paste text — title"), m.titleInput.View(), "",
			p.Dim().Render("enter: next  esc: cancel"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	case modePasteBody:
		sections = append(sections, p.Header().Render("Paste text — body"), m.body.View(), "",
			p.Dim().Render("ctrl+d: open  esc: cancel"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	sections = append(sections, m.catalogSection()...)
	sections = append(sections, m.recentsSection()...)
	sections = append(sections, "", m.helpLine())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) openBanner() string {
	if m.open.Phase != protocol.PhaseStarted {
		return ""
	}
	label := m.open.Title
	if label == "" {
		label = m.open.Path
	}
	return m.palette.Dim().Render("opening " + label + "…")
}

func (m Model) catalogSection() []string {
	p := m.palette
	visible := m.visibleEntries()

	head := p.Header().Render("Library")
	meta := fmt.Sprintf("  sort:%s", m.sortMode)
	if q := m.filter.Value(); q != "" {
		meta += fmt.Sprintf("  filter:%q", q)
	}
	switch m.catalog.Phase {
	case protocol.PhaseStarted:
		meta += "  scanning…"
	case protocol.PhaseFinished:
		meta += fmt.Sprintf("  %d documents", m.catalog.Count)
	case protocol.PhaseFailed:
		meta += "  scan failed"
	}
	lines := []string{head + p.Dim().Render(meta)}

	if m.mode == modeFilter {
		lines = append(lines, m.filter.View())
	}

	if len(visible) == 0 {
		lines = append(lines, p.Dim().Render("  nothing here — drop files in the library or press o"))
		return append(lines, "")
	}

	h := m.listHeight()
	span := window.Compute(len(visible), int(m.scrollPos+0.5), 1, h, overscan)
	for i := span.Start; i < span.End; i++ {
		lines = append(lines, m.catalogRow(visible[i], m.section == sectionCatalog && i == m.cursorCat))
	}
	if len(visible) > span.Count() {
		lines = append(lines, p.Dim().Render(fmt.Sprintf("  %d–%d of %d", span.Start+1, span.End, len(visible))))
	}
	return append(lines, "")
}

func (m Model) catalogRow(e protocol.CatalogEntry, selected bool) string {
	p := m.palette

	prefix := "  "
	style := lipgloss.NewStyle().Foreground(p.Fg)
	if selected {
		prefix = "> "
		style = p.Selected()
	}

	title := e.Title
	if len(title) > 40 {
		title = title[:39] + "…"
	}
	row := prefix + p.FormatBadge(e.Format) + " " + style.Render(title)
	if e.Author != "" {
		row += p.Dim().Render("  " + e.Author)
	}
	row += p.Dim().Render("  " + formatSize(e.SizeBytes))
	return row
}

func (m Model) recentsSection() []string {
	p := m.palette
	if len(m.recents) == 0 {
		return nil
	}

	lines := []string{p.Header().Render("Recent")}
	shown := min(len(m.recents), 5)
	for i := 0; i < shown; i++ {
		r := m.recents[i]
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(p.Fg)
		if m.section == sectionRecents && i == m.cursorRec {
			prefix = "> "
			style = p.Selected()
		}
		pos := fmt.Sprintf("p.%d/%d", r.LastPage+1, r.PageCount)
		lines = append(lines, prefix+style.Render(r.Title)+p.Dim().Render("  "+pos+"  "+relativeTime(r.OpenedAt)))
	}
	return lines
}

func (m Model) helpLine() string {
	return m.palette.Dim().Render("j/k:move  enter:open  tab:recents  /:filter  f:sort  o:path  p:paste  r:rescan  x:remove  t:theme  q:quit")
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
