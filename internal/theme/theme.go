// Package theme provides the Lip Gloss palettes and reusable styles for
// the Lantern Leaf TUI. It is a leaf package with no internal imports to
// avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is one theme's color set. Views derive their styles from it so a
// theme toggle restyles everything at once.
type Palette struct {
	Bg          lipgloss.Color
	Fg          lipgloss.Color
	Muted       lipgloss.Color
	Border      lipgloss.Color
	Accent      lipgloss.Color
	HighlightFg lipgloss.Color
	HighlightBg lipgloss.Color
	MatchFg     lipgloss.Color
	MatchBg     lipgloss.Color
	Success     lipgloss.Color
	Warning     lipgloss.Color
	Danger      lipgloss.Color
}

// Dark is the default palette.
var Dark = Palette{
	Bg:          lipgloss.Color("#111827"),
	Fg:          lipgloss.Color("#f9fafb"),
	Muted:       lipgloss.Color("#6b7280"),
	Border:      lipgloss.Color("#4b5563"),
	Accent:      lipgloss.Color("#f59e0b"),
	HighlightFg: lipgloss.Color("#fffbeb"),
	HighlightBg: lipgloss.Color("#92400e"),
	MatchFg:     lipgloss.Color("#eff6ff"),
	MatchBg:     lipgloss.Color("#2563eb"),
	Success:     lipgloss.Color("#22c55e"),
	Warning:     lipgloss.Color("#d97706"),
	Danger:      lipgloss.Color("#dc2626"),
}

// Light is a paper-toned palette for daylight reading.
var Light = Palette{
	Bg:          lipgloss.Color("#fdf6e3"),
	Fg:          lipgloss.Color("#1f2937"),
	Muted:       lipgloss.Color("#9ca3af"),
	Border:      lipgloss.Color("#d1d5db"),
	Accent:      lipgloss.Color("#b45309"),
	HighlightFg: lipgloss.Color("#451a03"),
	HighlightBg: lipgloss.Color("#fde68a"),
	MatchFg:     lipgloss.Color("#1e3a8a"),
	MatchBg:     lipgloss.Color("#bfdbfe"),
	Success:     lipgloss.Color("#16a34a"),
	Warning:     lipgloss.Color("#b45309"),
	Danger:      lipgloss.Color("#b91c1c"),
}

// ForTheme returns the palette for a session theme name.
func ForTheme(name string) Palette {
	if name == "light" {
		return Light
	}
	return Dark
}

// Title styles headings and the app name.
func (p Palette) Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
}

// Header styles section headers.
func (p Palette) Header() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(p.Fg)
}

// Dim styles secondary text.
func (p Palette) Dim() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Muted)
}

// Box draws a rounded border around panel content.
func (p Palette) Box() lipgloss.Style {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border)
}

// Highlight styles the narrated sentence.
func (p Palette) Highlight() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).
		Foreground(p.HighlightFg).
		Background(p.HighlightBg)
}

// Match styles search hits.
func (p Palette) Match() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(p.MatchFg).
		Background(p.MatchBg)
}

// StatusBar styles the bottom bar.
func (p Palette) StatusBar() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(p.Fg).
		Background(p.Border).
		Padding(0, 1)
}

// Selected styles the focused list row.
func (p Palette) Selected() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
}

// GaugeColor returns the color for a utilization percentage in [0,1].
func (p Palette) GaugeColor(pct float64) lipgloss.Color {
	switch {
	case pct > 0.8:
		return p.Danger
	case pct > 0.5:
		return p.Warning
	default:
		return p.Success
	}
}

// FormatBadge returns a colored badge for a document format.
func (p Palette) FormatBadge(format string) string {
	switch format {
	case "md":
		return lipgloss.NewStyle().Foreground(p.Accent).Render("[M]")
	case "txt":
		return lipgloss.NewStyle().Foreground(p.Muted).Render("[T]")
	default:
		return lipgloss.NewStyle().Foreground(p.Muted).Render("[?]")
	}
}

// PlaybackGlyph returns a glyph for a playback state.
func PlaybackGlyph(state string) string {
	switch state {
	case "playing":
		return "▶"
	case "paused":
		return "‖"
	case "stopped":
		return "■"
	default:
		return "·"
	}
}

// ConnGlyph returns a glyph for the feed connection state.
func ConnGlyph(connected bool) string {
	if connected {
		return "●"
	}
	return "○"
}
