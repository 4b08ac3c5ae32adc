package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the mode-independent key bindings. The starter and reader
// views carry their own maps for everything mode-specific.
type KeyMap struct {
	Quit     key.Binding
	Theme    key.Binding
	LogLevel key.Binding
	Settings key.Binding
	Stats    key.Binding
	TTS      key.Binding
}

// DefaultKeyMap returns the default global bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Theme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		LogLevel: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log level"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "settings panel"),
		),
		Stats: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "stats panel"),
		),
		TTS: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "speech panel"),
		),
	}
}
