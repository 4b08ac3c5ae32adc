// Package status renders the bottom status bar: connectivity, session mode,
// reading position, playback transport and the transient notice line.
package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sguzman/lantern-leaf-sub000/internal/state"
	"github.com/sguzman/lantern-leaf-sub000/internal/theme"
)

// NoticeTTL is how long a notice stays on screen.
const NoticeTTL = 5 * time.Second

// Model holds the status bar state. The app pushes fresh values from every
// store snapshot.
type Model struct {
	Width        int
	Palette      theme.Palette
	Connected    bool
	Busy         bool
	SpinnerFrame string
	Reading      bool
	Title        string
	Page         int
	PageCount    int
	Playback     string
	Voice        string
	Rate         float64
	LogLevel     string
	Version      string
	Notice       *state.Notice
}

// New creates a status bar model.
func New() Model {
	return Model{Palette: theme.Dark}
}

// View renders the bar, plus the notice line while one is live.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	p := m.Palette

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(p.Success).Render(theme.ConnGlyph(true) + " online")
	} else {
		connStr = lipgloss.NewStyle().Foreground(p.Danger).Render(theme.ConnGlyph(false) + " connecting…")
	}

	var mid string
	if m.Reading {
		mid = fmt.Sprintf("%s  %d/%d", m.Title, m.Page+1, m.PageCount)
		if m.Playback != "" {
			mid += fmt.Sprintf("  %s %s ×%.2g", theme.PlaybackGlyph(m.Playback), m.Voice, m.Rate)
		}
	} else {
		mid = "library"
	}
	if m.Busy && m.SpinnerFrame != "" {
		mid += "  " + m.SpinnerFrame
	}

	right := m.LogLevel
	if m.Version != "" {
		right += "  " + m.Version
	}

	sep := lipgloss.NewStyle().Foreground(p.Muted).Render(" │ ")
	left := connStr + sep + mid

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	content := left + lipgloss.NewStyle().Width(gap).Render("") + p.Dim().Render(right)

	bar := p.StatusBar().Width(width).Render(content)

	if m.Notice != nil && time.Since(m.Notice.At) < NoticeTTL {
		color := p.Accent
		prefix := "i"
		if m.Notice.Kind == state.NoticeError {
			color = p.Danger
			prefix = "!"
		}
		line := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf(" %s %s", prefix, m.Notice.Text))
		return lipgloss.JoinVertical(lipgloss.Left, bar, line)
	}
	return bar
}
