// Package reader renders an open document: the paginated sentence content
// with narration and search highlights, the settings/stats/tts panels, and
// the in-document search prompt. Markdown pages with no highlight are
// typeset through glamour; any highlight falls back to the sentence list so
// the highlighted sentence stays visible.
package reader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sguzman/lantern-leaf-sub000/internal/action"
	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
	"github.com/sguzman/lantern-leaf-sub000/internal/theme"
)

// ActionDoneMsg is returned after a coordinator call finishes.
type ActionDoneMsg struct{}

const (
	fontStep = 0.1
	fontMin  = 0.5
	fontMax  = 3.0
	rateStep = 0.25
	rateMin  = 0.25
	rateMax  = 4.0
)

// KeyMap holds the reader-specific key bindings.
type KeyMap struct {
	PrevPage      key.Binding
	NextPage      key.Binding
	NextSentence  key.Binding
	PrevSentence  key.Binding
	First         key.Binding
	Last          key.Binding
	Toggle        key.Binding
	PlayHighlight key.Binding
	PlayPage      key.Binding
	SeekNext      key.Binding
	SeekPrev      key.Binding
	Repeat        key.Binding
	Search        key.Binding
	NextMatch     key.Binding
	PrevMatch     key.Binding
	TextOnly      key.Binding
	Precompute    key.Binding
	FontUp        key.Binding
	FontDown      key.Binding
	RateUp        key.Binding
	RateDown      key.Binding
	Voice         key.Binding
	Escape        key.Binding
}

// DefaultKeyMap returns the default reader bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevPage: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "prev page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next page"),
		),
		NextSentence: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next sentence"),
		),
		PrevSentence: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev sentence"),
		),
		First: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "first sentence"),
		),
		Last: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "last sentence"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		PlayHighlight: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "read from here"),
		),
		PlayPage: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "read page"),
		),
		SeekNext: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "seek forward"),
		),
		SeekPrev: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "seek back"),
		),
		Repeat: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "repeat sentence"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "prev match"),
		),
		TextOnly: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "plain text"),
		),
		Precompute: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "precompute speech"),
		),
		FontUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "font up"),
		),
		FontDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "font down"),
		),
		RateUp: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "faster"),
		),
		RateDown: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "slower"),
		),
		Voice: key.NewBinding(
			key.WithKeys("V"),
			key.WithHelp("V", "voice"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

type mdKey struct {
	resource string
	page     int
	width    int
	theme    string
}

// Model is the reader view model.
type Model struct {
	co   *action.Coordinator
	ctx  context.Context
	keys KeyMap

	palette   theme.Palette
	themeName string
	width     int
	height    int

	view   *protocol.ReaderView
	voices []string
	jobs   map[string]protocol.JobEvent

	searching bool
	search    textinput.Model

	gauge progress.Model

	md    string
	mdKey mdKey
}

// New creates a reader model issuing its calls through co under ctx.
func New(co *action.Coordinator, ctx context.Context) Model {
	search := textinput.New()
	search.Placeholder = "search this document"
	search.Prompt = "/"
	search.CharLimit = 128

	gauge := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())

	return Model{
		co:        co,
		ctx:       ctx,
		keys:      DefaultKeyMap(),
		palette:   theme.Dark,
		themeName: protocol.ThemeDark,
		search:    search,
		gauge:     gauge,
	}
}

// SetTheme restyles the view. The name also selects the glamour style for
// markdown pages.
func (m *Model) SetTheme(name string) {
	if name == m.themeName {
		return
	}
	m.themeName = name
	m.palette = theme.ForTheme(name)
	m.md = ""
	m.renderMarkdown()
}

// SetSize updates the available rendering area.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.gauge.Width = min(width-24, 48)
	m.renderMarkdown()
}

// SetData replaces the store-backed fields.
func (m *Model) SetData(view *protocol.ReaderView, voices []string, jobs map[string]protocol.JobEvent) {
	m.view = view
	m.voices = voices
	m.jobs = jobs
	m.renderMarkdown()
}

// Typing reports whether keystrokes belong to the search field right now.
func (m Model) Typing() bool {
	return m.searching
}

func (m Model) cmd(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return ActionDoneMsg{}
	}
}

func (m Model) contentWidth() int {
	margin := 0
	if m.view != nil {
		margin = m.view.Settings.MarginWidth
	}
	w := m.width - 2*margin - 2
	if w < 20 {
		w = min(m.width-2, 20)
	}
	if w < 10 {
		w = 10
	}
	return w
}

// renderMarkdown refreshes the cached glamour page when the typeset path is
// active. Cleared otherwise so View falls back to the sentence list.
func (m *Model) renderMarkdown() {
	v := m.view
	if v == nil || !v.Markdown || v.TextOnly || v.Highlight != nil || len(v.Search.Matches) > 0 {
		m.md = ""
		return
	}
	key := mdKey{resource: v.ResourceID, page: v.Page, width: m.contentWidth(), theme: m.themeName}
	if key == m.mdKey && m.md != "" {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.themeName),
		glamour.WithWordWrap(key.width),
	)
	if err != nil {
		m.md = ""
		return
	}
	out, err := r.Render(strings.Join(v.Sentences, "\n\n"))
	if err != nil {
		m.md = ""
		return
	}
	m.md, m.mdKey = out, key
}

// Update handles reader messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.searching {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.searching {
		return m.handleSearchKey(keyMsg)
	}
	return m.handleKey(keyMsg)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		return m, nil
	case msg.Type == tea.KeyEnter:
		query := strings.TrimSpace(m.search.Value())
		m.searching = false
		m.search.Blur()
		return m, m.cmd(func(ctx context.Context) error {
			return m.co.SetSearch(ctx, query)
		})
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := m.view

	switch {
	case key.Matches(msg, m.keys.PrevPage):
		return m, m.cmd(m.co.PrevPage)
	case key.Matches(msg, m.keys.NextPage):
		return m, m.cmd(m.co.NextPage)
	case key.Matches(msg, m.keys.NextSentence):
		return m, m.cmd(m.co.NextSentence)
	case key.Matches(msg, m.keys.PrevSentence):
		return m, m.cmd(m.co.PrevSentence)

	case key.Matches(msg, m.keys.First):
		return m, m.cmd(func(ctx context.Context) error {
			return m.co.SelectSentence(ctx, 0)
		})
	case key.Matches(msg, m.keys.Last):
		if v == nil || len(v.Sentences) == 0 {
			return m, nil
		}
		last := len(v.Sentences) - 1
		return m, m.cmd(func(ctx context.Context) error {
			return m.co.SelectSentence(ctx, last)
		})

	case key.Matches(msg, m.keys.Toggle):
		return m, m.cmd(m.co.TogglePlayback)
	case key.Matches(msg, m.keys.PlayHighlight):
		return m, m.cmd(m.co.PlayFromHighlight)
	case key.Matches(msg, m.keys.PlayPage):
		return m, m.cmd(m.co.PlayFromPageStart)
	case key.Matches(msg, m.keys.SeekNext):
		return m, m.cmd(m.co.SeekNext)
	case key.Matches(msg, m.keys.SeekPrev):
		return m, m.cmd(m.co.SeekPrev)
	case key.Matches(msg, m.keys.Repeat):
		return m, m.cmd(m.co.RepeatSentence)

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		if v != nil {
			m.search.SetValue(v.Search.Query)
		}
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.NextMatch):
		return m, m.cmd(m.co.NextMatch)
	case key.Matches(msg, m.keys.PrevMatch):
		return m, m.cmd(m.co.PrevMatch)

	case key.Matches(msg, m.keys.TextOnly):
		return m, m.cmd(m.co.ToggleTextOnly)
	case key.Matches(msg, m.keys.Precompute):
		return m, m.cmd(m.co.PrecomputePage)

	case key.Matches(msg, m.keys.FontUp):
		return m, m.applyFont(fontStep)
	case key.Matches(msg, m.keys.FontDown):
		return m, m.applyFont(-fontStep)
	case key.Matches(msg, m.keys.RateUp):
		return m, m.applyRate(rateStep)
	case key.Matches(msg, m.keys.RateDown):
		return m, m.applyRate(-rateStep)
	case key.Matches(msg, m.keys.Voice):
		return m, m.cycleVoice()

	case key.Matches(msg, m.keys.Escape):
		if v != nil && v.Search.Query != "" {
			return m, m.cmd(func(ctx context.Context) error {
				return m.co.SetSearch(ctx, "")
			})
		}
		return m, m.cmd(m.co.CloseReader)
	}

	return m, nil
}

func (m Model) applyFont(delta float64) tea.Cmd {
	if m.view == nil {
		return nil
	}
	next := clampF(m.view.Settings.FontScale+delta, fontMin, fontMax)
	if next == m.view.Settings.FontScale {
		return nil
	}
	return m.cmd(func(ctx context.Context) error {
		return m.co.ApplySettings(ctx, protocol.SettingsPatch{FontScale: &next})
	})
}

func (m Model) applyRate(delta float64) tea.Cmd {
	if m.view == nil {
		return nil
	}
	next := clampF(m.view.Settings.SpeechRate+delta, rateMin, rateMax)
	if next == m.view.Settings.SpeechRate {
		return nil
	}
	return m.cmd(func(ctx context.Context) error {
		return m.co.ApplySettings(ctx, protocol.SettingsPatch{SpeechRate: &next})
	})
}

func (m Model) cycleVoice() tea.Cmd {
	if m.view == nil || len(m.voices) == 0 {
		return nil
	}
	current := m.view.Settings.SpeechVoice
	next := m.voices[0]
	for i, v := range m.voices {
		if v == current {
			next = m.voices[(i+1)%len(m.voices)]
			break
		}
	}
	if next == current {
		return nil
	}
	return m.cmd(func(ctx context.Context) error {
		return m.co.ApplySettings(ctx, protocol.SettingsPatch{SpeechVoice: &next})
	})
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// View renders the reader screen.
func (m Model) View() string {
	v := m.view
	if v == nil {
		return m.palette.Dim().Render("no document open")
	}

	var parts []string

	sidePanels := m.width >= 100 && m.anyPanel()
	contentW := m.contentWidth()
	if sidePanels {
		contentW = min(contentW, m.width-40)
	}

	content := m.content(contentW)
	if sidePanels {
		panel := lipgloss.JoinVertical(lipgloss.Left, m.panels(36)...)
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, " ", panel)
	}
	parts = append(parts, content)

	if !sidePanels && m.anyPanel() {
		parts = append(parts, m.panels(min(m.width-2, 60))...)
	}

	if line := m.searchLine(); line != "" {
		parts = append(parts, line)
	}
	if line := m.jobLine(); line != "" {
		parts = append(parts, line)
	}
	parts = append(parts, m.helpLine())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) anyPanel() bool {
	v := m.view
	return v != nil && (v.Panels.Settings || v.Panels.Stats || v.Panels.TTS)
}

// contentHeight is the line budget for the page body.
func (m Model) contentHeight(sidePanels bool) int {
	h := m.height - 2 // search/job/help chrome
	if !sidePanels && m.anyPanel() {
		h -= 9
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) content(width int) string {
	sidePanels := m.width >= 100 && m.anyPanel()
	h := m.contentHeight(sidePanels)

	if m.md != "" {
		return cropLines(m.md, h, m.palette)
	}

	lines, highlightLine := m.sentenceLines(width)
	if len(lines) <= h {
		return strings.Join(lines, "\n")
	}

	// Keep the highlighted sentence roughly centered.
	offset := 0
	if highlightLine >= 0 {
		offset = highlightLine - h/2
	}
	if offset > len(lines)-h {
		offset = len(lines) - h
	}
	if offset < 0 {
		offset = 0
	}
	window := lines[offset : offset+h]
	out := strings.Join(window, "\n")
	if offset+h < len(lines) {
		out += "\n" + m.palette.Dim().Render("  ⋯")
	}
	return out
}

// sentenceLines renders the page as wrapped sentence rows and returns the
// first screen line of the highlighted sentence, or -1.
func (m Model) sentenceLines(width int) ([]string, int) {
	v := m.view
	p := m.palette

	hi := -1
	if v.Highlight != nil {
		hi = *v.Highlight
	}
	active := -1
	if v.Search.Active >= 0 && v.Search.Active < len(v.Search.Matches) {
		active = v.Search.Matches[v.Search.Active] - v.SentenceBase
	}
	matches := make(map[int]bool, len(v.Search.Matches))
	for _, ord := range v.Search.Matches {
		if local := ord - v.SentenceBase; local >= 0 && local < len(v.Sentences) {
			matches[local] = true
		}
	}

	wrap := lipgloss.NewStyle().Width(width)
	var lines []string
	highlightLine := -1
	for i, s := range v.Sentences {
		var block string
		switch {
		case i == hi:
			block = wrap.Render(p.Highlight().Render(s))
		case i == active:
			block = wrap.Render(p.Match().Render(s))
		case matches[i]:
			block = wrap.Render(p.Match().Render(s))
		default:
			block = wrap.Render(s)
		}
		if i == hi {
			highlightLine = len(lines)
		}
		lines = append(lines, strings.Split(block, "\n")...)
		lines = append(lines, "")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines, highlightLine
}

func cropLines(s string, h int, p theme.Palette) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= h {
		return strings.Join(lines, "\n")
	}
	out := strings.Join(lines[:h], "\n")
	return out + "\n" + p.Dim().Render("  ⋯ j/k to step through sentences")
}

func (m Model) searchLine() string {
	p := m.palette
	if m.searching {
		return m.search.View()
	}
	v := m.view
	if v.Search.Query == "" {
		return ""
	}
	pos := "–"
	if v.Search.Active >= 0 {
		pos = fmt.Sprintf("%d", v.Search.Active+1)
	}
	return p.Dim().Render(fmt.Sprintf("/%s  %s/%d matches  n/N to move, esc to clear", v.Search.Query, pos, len(v.Search.Matches)))
}

// jobLine shows the active precompute job, if any.
func (m Model) jobLine() string {
	var job *protocol.JobEvent
	for id := range m.jobs {
		j := m.jobs[id]
		if j.Kind == protocol.JobPrecompute && !j.Phase.Terminal() {
			if job == nil || j.Page == m.view.Page {
				cp := j
				job = &cp
			}
		}
	}
	if job == nil {
		return ""
	}
	label := fmt.Sprintf("synthesizing p.%d ", job.Page+1)
	return m.palette.Dim().Render(label) + m.gauge.ViewAs(job.Percent/100)
}

func (m Model) panels(width int) []string {
	v := m.view
	var out []string
	if v.Panels.Settings {
		out = append(out, m.settingsPanel(width))
	}
	if v.Panels.Stats {
		out = append(out, m.statsPanel(width))
	}
	if v.Panels.TTS {
		out = append(out, m.ttsPanel(width))
	}
	return out
}

func (m Model) settingsPanel(width int) string {
	p := m.palette
	s := m.view.Settings
	justify := "off"
	if s.Justify {
		justify = "on"
	}
	body := strings.Join([]string{
		p.Header().Render("Settings"),
		fmt.Sprintf("font scale    %.1f  (+/-)", s.FontScale),
		fmt.Sprintf("line spacing  %.1f", s.LineSpacing),
		fmt.Sprintf("margin        %d", s.MarginWidth),
		fmt.Sprintf("justify       %s", justify),
		fmt.Sprintf("speech rate   %.2f  (</>)", s.SpeechRate),
		fmt.Sprintf("voice         %s  (V)", s.SpeechVoice),
	}, "\n")
	return p.Box().Width(width).Render(body)
}

func (m Model) statsPanel(width int) string {
	p := m.palette
	st := m.view.Stats
	gauge := m.gauge
	gauge.Width = max(width-14, 10)

	lines := []string{
		p.Header().Render("Progress"),
		fmt.Sprintf("%5.1f%% ", st.PercentRead) + gauge.ViewAs(st.PercentRead/100),
		fmt.Sprintf("words read    %d of %d", st.WordsRead, st.TotalWords),
		fmt.Sprintf("pages read    %d", st.PagesRead),
		fmt.Sprintf("time reading  %s", formatDuration(st.ReadingSeconds)),
		fmt.Sprintf("pace          %.0f wpm", st.WordsPerMinute),
	}
	if st.EngineRSSBytes > 0 {
		lines = append(lines, fmt.Sprintf("engine        %.0fMB rss  %.1f%% cpu",
			float64(st.EngineRSSBytes)/(1<<20), st.EngineCPUPct))
	}
	if m.co != nil {
		recs := m.co.Telemetry().Records()
		if len(recs) > 3 {
			recs = recs[len(recs)-3:]
		}
		if len(recs) > 0 {
			lines = append(lines, p.Header().Render("Activity"))
		}
		for _, r := range recs {
			outcome := "ok"
			if !r.OK {
				outcome = r.Err
			}
			if len(outcome) > 24 {
				outcome = outcome[:23] + "…"
			}
			lines = append(lines, fmt.Sprintf("%-9s %6s  %s",
				r.Action, r.Duration.Round(time.Millisecond), outcome))
		}
	}
	return p.Box().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) ttsPanel(width int) string {
	p := m.palette
	v := m.view
	pb := v.Playback

	sentence := "–"
	if pb.Sentence != nil {
		sentence = fmt.Sprintf("%d of %d", v.SentenceBase+*pb.Sentence+1, v.TotalSentences)
	}
	var voices []string
	for _, voice := range m.voices {
		if voice == v.Settings.SpeechVoice {
			voices = append(voices, p.Selected().Render(voice))
		} else {
			voices = append(voices, p.Dim().Render(voice))
		}
	}

	body := strings.Join([]string{
		p.Header().Render("Narrator"),
		fmt.Sprintf("%s %s  ×%.2f", theme.PlaybackGlyph(string(pb.State)), pb.State, pb.Rate),
		fmt.Sprintf("sentence  %s", sentence),
		"voices    " + strings.Join(voices, " "),
	}, "\n")
	return p.Box().Width(width).Render(body)
}

func (m Model) helpLine() string {
	return m.palette.Dim().Render("h/l:page  j/k:sentence  space:play  /:search  m:plain  s/i/v:panels  esc:close")
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
