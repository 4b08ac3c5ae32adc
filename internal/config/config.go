// Package config loads the yaml configuration shared by the leaf client and
// the leafd engine daemon. Defaults are filled first, then the file is
// unmarshalled over them, so a partial file only overrides what it names.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Engine  EngineConfig  `yaml:"engine"`
	Library LibraryConfig `yaml:"library"`
	Speech  SpeechConfig  `yaml:"speech"`
	Log     LogConfig     `yaml:"log"`
}

// ClientConfig configures the leaf TUI's connection to a remote engine.
// Empty URL means embedded mode: the client runs the engine in-process.
type ClientConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type EngineConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Token          string   `yaml:"token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	StatsInterval  Duration `yaml:"stats_interval"`
}

type LibraryConfig struct {
	Dir            string   `yaml:"dir"`
	DB             string   `yaml:"db"`
	RescanDebounce Duration `yaml:"rescan_debounce"`
}

type SpeechConfig struct {
	Rate   float64  `yaml:"rate"`
	Voice  string   `yaml:"voice"`
	Voices []string `yaml:"voices"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration unmarshals yaml strings like "500ms" or "2s" into a
// time.Duration; bare integers are taken as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Host:          "127.0.0.1",
			Port:          8391,
			StatsInterval: Duration(2 * time.Second),
		},
		Library: LibraryConfig{
			Dir:            "./library",
			RescanDebounce: Duration(500 * time.Millisecond),
		},
		Speech: SpeechConfig{
			Rate:  1.0,
			Voice: "ivy",
			Voices: []string{
				"ivy", "marlow", "quinn", "sage",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads path and unmarshals it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to the defaults when
// it does not. Any other read or parse failure is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// GenerateToken returns a fresh random bearer token.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Addr is the engine's listen address.
func (c *EngineConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBPath resolves the recents database location, defaulting to a hidden
// file beside the library.
func (c *LibraryConfig) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return c.Dir + "/.lantern-leaf.db"
}

// OrderedVoices returns the voice list with the preferred voice first; the
// engine treats the head of the list as the session default.
func (c *SpeechConfig) OrderedVoices() []string {
	if c.Voice == "" {
		return c.Voices
	}
	out := make([]string, 0, len(c.Voices)+1)
	out = append(out, c.Voice)
	for _, v := range c.Voices {
		if !strings.EqualFold(v, c.Voice) {
			out = append(out, v)
		}
	}
	return out
}

// Diff lists the human-readable changes between two configs, one entry per
// changed key. Used when a reload replaces the running config.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(key string, o, n interface{}) {
		changes = append(changes, fmt.Sprintf("%s: %v → %v", key, o, n))
	}

	if old.Client.URL != new.Client.URL {
		add("client.url", old.Client.URL, new.Client.URL)
	}
	if old.Client.Token != new.Client.Token {
		changes = append(changes, "client.token: changed")
	}
	if old.Engine.Host != new.Engine.Host {
		add("engine.host", old.Engine.Host, new.Engine.Host)
	}
	if old.Engine.Port != new.Engine.Port {
		add("engine.port", old.Engine.Port, new.Engine.Port)
	}
	if old.Engine.Token != new.Engine.Token {
		changes = append(changes, "engine.token: changed")
	}
	if !equalStrings(old.Engine.AllowedOrigins, new.Engine.AllowedOrigins) {
		add("engine.allowed_origins", old.Engine.AllowedOrigins, new.Engine.AllowedOrigins)
	}
	if old.Engine.StatsInterval != new.Engine.StatsInterval {
		add("engine.stats_interval", old.Engine.StatsInterval, new.Engine.StatsInterval)
	}
	if old.Library.Dir != new.Library.Dir {
		add("library.dir", old.Library.Dir, new.Library.Dir)
	}
	if old.Library.DB != new.Library.DB {
		add("library.db", old.Library.DB, new.Library.DB)
	}
	if old.Library.RescanDebounce != new.Library.RescanDebounce {
		add("library.rescan_debounce", old.Library.RescanDebounce, new.Library.RescanDebounce)
	}
	if old.Speech.Rate != new.Speech.Rate {
		add("speech.rate", old.Speech.Rate, new.Speech.Rate)
	}
	if old.Speech.Voice != new.Speech.Voice {
		add("speech.voice", old.Speech.Voice, new.Speech.Voice)
	}
	if !equalStrings(old.Speech.Voices, new.Speech.Voices) {
		add("speech.voices", old.Speech.Voices, new.Speech.Voices)
	}
	if old.Log.Level != new.Log.Level {
		add("log.level", old.Log.Level, new.Log.Level)
	}
	if old.Log.Format != new.Log.Format {
		add("log.format", old.Log.Format, new.Log.Format)
	}
	if old.Log.Output != new.Log.Output {
		add("log.output", old.Log.Output, new.Log.Output)
	}

	sort.Strings(changes)
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
