package protocol

import (
	"sort"
	"time"
)

// Mode is the top-level state of a client session.
type Mode string

const (
	ModeStarter Mode = "starter"
	ModeReader  Mode = "reader"
)

// Panel names an overlay panel in reader mode.
type Panel string

const (
	PanelSettings Panel = "settings"
	PanelStats    Panel = "stats"
	PanelTTS      Panel = "tts"
)

// PanelSet tracks which overlay panels are active. Settings and Stats are
// mutually exclusive; TTS toggles independently of both.
type PanelSet struct {
	Settings bool `json:"settings,omitempty"`
	Stats    bool `json:"stats,omitempty"`
	TTS      bool `json:"tts,omitempty"`
}

// Toggle returns the set with the named panel flipped, enforcing the
// settings/stats exclusion. Unknown panels leave the set unchanged.
func (p PanelSet) Toggle(name Panel) PanelSet {
	switch name {
	case PanelSettings:
		p.Settings = !p.Settings
		if p.Settings {
			p.Stats = false
		}
	case PanelStats:
		p.Stats = !p.Stats
		if p.Stats {
			p.Settings = false
		}
	case PanelTTS:
		p.TTS = !p.TTS
	}
	return p
}

// Active reports whether the named panel is on.
func (p PanelSet) Active(name Panel) bool {
	switch name {
	case PanelSettings:
		return p.Settings
	case PanelStats:
		return p.Stats
	case PanelTTS:
		return p.TTS
	}
	return false
}

// Session is the top-level state of one client session. ResourceID is
// non-empty only while Mode is ModeReader.
type Session struct {
	Mode       Mode     `json:"mode"`
	ResourceID string   `json:"resourceId,omitempty"`
	Opening    bool     `json:"opening,omitempty"`
	Theme      string   `json:"theme"`
	Panels     PanelSet `json:"panels"`
}

// Reading reports whether the session has an open resource.
func (s Session) Reading() bool {
	return s.Mode == ModeReader && s.ResourceID != ""
}

// Theme names accepted by the theme toggle.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Settings are the reader's display and speech preferences.
type Settings struct {
	FontScale   float64 `json:"fontScale"`
	LineSpacing float64 `json:"lineSpacing"`
	MarginWidth int     `json:"marginWidth"`
	Justify     bool    `json:"justify"`
	SpeechRate  float64 `json:"speechRate"`
	SpeechVoice string  `json:"speechVoice"`
}

// DefaultSettings returns the engine defaults applied before any patch.
func DefaultSettings() Settings {
	return Settings{
		FontScale:   1.0,
		LineSpacing: 1.0,
		MarginWidth: 4,
		SpeechRate:  1.0,
		SpeechVoice: "ivy",
	}
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
type SettingsPatch struct {
	FontScale   *float64 `json:"fontScale,omitempty"`
	LineSpacing *float64 `json:"lineSpacing,omitempty"`
	MarginWidth *int     `json:"marginWidth,omitempty"`
	Justify     *bool    `json:"justify,omitempty"`
	SpeechRate  *float64 `json:"speechRate,omitempty"`
	SpeechVoice *string  `json:"speechVoice,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p SettingsPatch) IsZero() bool {
	return p.FontScale == nil && p.LineSpacing == nil && p.MarginWidth == nil &&
		p.Justify == nil && p.SpeechRate == nil && p.SpeechVoice == nil
}

// Fields returns the sorted names of the patched fields.
func (p SettingsPatch) Fields() []string {
	var fields []string
	if p.FontScale != nil {
		fields = append(fields, "fontScale")
	}
	if p.LineSpacing != nil {
		fields = append(fields, "lineSpacing")
	}
	if p.MarginWidth != nil {
		fields = append(fields, "marginWidth")
	}
	if p.Justify != nil {
		fields = append(fields, "justify")
	}
	if p.SpeechRate != nil {
		fields = append(fields, "speechRate")
	}
	if p.SpeechVoice != nil {
		fields = append(fields, "speechVoice")
	}
	sort.Strings(fields)
	return fields
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.FontScale != nil {
		s.FontScale = *p.FontScale
	}
	if p.LineSpacing != nil {
		s.LineSpacing = *p.LineSpacing
	}
	if p.MarginWidth != nil {
		s.MarginWidth = *p.MarginWidth
	}
	if p.Justify != nil {
		s.Justify = *p.Justify
	}
	if p.SpeechRate != nil {
		s.SpeechRate = *p.SpeechRate
	}
	if p.SpeechVoice != nil {
		s.SpeechVoice = *p.SpeechVoice
	}
	return s
}

// ReadingStats is a point-in-time snapshot of reading progress, plus engine
// process diagnostics for the stats panel.
type ReadingStats struct {
	PageWords      int     `json:"pageWords"`
	TotalWords     int     `json:"totalWords"`
	WordsRead      int     `json:"wordsRead"`
	PagesRead      int     `json:"pagesRead"`
	ReadingSeconds float64 `json:"readingSeconds"`
	WordsPerMinute float64 `json:"wordsPerMinute"`
	PercentRead    float64 `json:"percentRead"`
	EngineRSSBytes uint64  `json:"engineRssBytes,omitempty"`
	EngineCPUPct   float64 `json:"engineCpuPct,omitempty"`
}

// PlaybackState is the narrator transport state.
type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// Playback is the narrator state. Sentence indexes the current page's
// sentence list and is nil exactly when nothing is highlighted.
type Playback struct {
	State    PlaybackState `json:"state"`
	Sentence *int          `json:"sentence,omitempty"`
	Rate     float64       `json:"rate"`
	Voice    string        `json:"voice"`
}

// SearchState is the active in-document search. Matches hold document-wide
// sentence ordinals; Active indexes Matches and is -1 when no match is
// focused.
type SearchState struct {
	Query   string `json:"query,omitempty"`
	Matches []int  `json:"matches,omitempty"`
	Active  int    `json:"active"`
}

// ReaderView is the authoritative reader-mode state for one open resource.
// Sentences holds only the current page; SentenceBase is the document-wide
// ordinal of Sentences[0].
type ReaderView struct {
	ResourceID     string       `json:"resourceId"`
	Title          string       `json:"title"`
	Path           string       `json:"path,omitempty"`
	Markdown       bool         `json:"markdown,omitempty"`
	Page           int          `json:"page"`
	PageCount      int          `json:"pageCount"`
	Sentences      []string     `json:"sentences"`
	SentenceBase   int          `json:"sentenceBase"`
	TotalSentences int          `json:"totalSentences"`
	Highlight      *int         `json:"highlight,omitempty"`
	TextOnly       bool         `json:"textOnly,omitempty"`
	Search         SearchState  `json:"search"`
	Settings       Settings     `json:"settings"`
	Stats          ReadingStats `json:"stats"`
	Playback       Playback     `json:"playback"`
	Panels         PanelSet     `json:"panels"`
}

// Clone returns a deep copy of the ReaderView, duplicating pointer and slice
// fields so the copy can be mutated independently of the original.
func (v *ReaderView) Clone() *ReaderView {
	if v == nil {
		return nil
	}
	c := *v
	if v.Highlight != nil {
		h := *v.Highlight
		c.Highlight = &h
	}
	if v.Playback.Sentence != nil {
		s := *v.Playback.Sentence
		c.Playback.Sentence = &s
	}
	if len(v.Sentences) > 0 {
		c.Sentences = make([]string, len(v.Sentences))
		copy(c.Sentences, v.Sentences)
	}
	if len(v.Search.Matches) > 0 {
		c.Search.Matches = make([]int, len(v.Search.Matches))
		copy(c.Search.Matches, v.Search.Matches)
	}
	return &c
}

// CatalogEntry is one discoverable document in the library directory.
type CatalogEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	SizeBytes int64     `json:"sizeBytes"`
	AddedAt   time.Time `json:"addedAt"`
}

// Document formats recognized by the catalog scanner.
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
)

// RecentEntry is a previously opened document with its resume position.
type RecentEntry struct {
	ResourceID string    `json:"resourceId"`
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	LastPage   int       `json:"lastPage"`
	PageCount  int       `json:"pageCount"`
	OpenedAt   time.Time `json:"openedAt"`
}

// Bootstrap seeds a client store when a connection is established.
type Bootstrap struct {
	Version  string      `json:"version"`
	Library  string      `json:"library"`
	Session  Session     `json:"session"`
	Reader   *ReaderView `json:"reader,omitempty"`
	LogLevel string      `json:"logLevel"`
	Voices   []string    `json:"voices,omitempty"`
}

// OpenResult is returned by the open operations: the post-open session plus
// the freshly built reader view.
type OpenResult struct {
	Session Session     `json:"session"`
	Reader  *ReaderView `json:"reader"`
}
