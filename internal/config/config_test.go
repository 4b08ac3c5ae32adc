package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "engine:\n  port: 9000\nlog:\n  level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Engine.Port != 9000 {
		t.Errorf("Engine.Port = %d, want 9000", cfg.Engine.Port)
	}
	if cfg.Engine.Host != "127.0.0.1" {
		t.Errorf("Engine.Host default lost: %q", cfg.Engine.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format default lost: %q", cfg.Log.Format)
	}
	if cfg.Speech.Rate != 1.0 {
		t.Errorf("Speech.Rate default lost: %v", cfg.Speech.Rate)
	}
	if len(cfg.Speech.Voices) != 4 {
		t.Errorf("Speech.Voices default lost: %v", cfg.Speech.Voices)
	}
}

func TestDurationsParse(t *testing.T) {
	path := writeConfig(t, "library:\n  rescan_debounce: 2s\nengine:\n  stats_interval: 250ms\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if time.Duration(cfg.Library.RescanDebounce) != 2*time.Second {
		t.Errorf("rescan_debounce = %v, want 2s", cfg.Library.RescanDebounce)
	}
	if time.Duration(cfg.Engine.StatsInterval) != 250*time.Millisecond {
		t.Errorf("stats_interval = %v, want 250ms", cfg.Engine.StatsInterval)
	}
}

func TestInvalidDurationErrors(t *testing.T) {
	path := writeConfig(t, "engine:\n  stats_interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with bad duration should return error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/leaf.yaml"); err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/leaf.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Engine.Port != 8391 {
		t.Errorf("Engine.Port = %d, want default 8391", cfg.Engine.Port)
	}
	if cfg.Speech.Voice != "ivy" {
		t.Errorf("Speech.Voice = %q, want default ivy", cfg.Speech.Voice)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, ":::not valid yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestDBPathFallsBackBesideLibrary(t *testing.T) {
	lib := LibraryConfig{Dir: "/books"}
	if got := lib.DBPath(); got != "/books/.lantern-leaf.db" {
		t.Errorf("DBPath() = %q", got)
	}
	lib.DB = "/tmp/custom.db"
	if got := lib.DBPath(); got != "/tmp/custom.db" {
		t.Errorf("DBPath() = %q", got)
	}
}

func TestOrderedVoices(t *testing.T) {
	s := SpeechConfig{Voice: "quinn", Voices: []string{"ivy", "marlow", "quinn", "sage"}}
	got := s.OrderedVoices()
	want := []string{"quinn", "ivy", "marlow", "sage"}
	if len(got) != len(want) {
		t.Fatalf("OrderedVoices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("OrderedVoices()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	s.Voice = ""
	if got := s.OrderedVoices(); len(got) != 4 || got[0] != "ivy" {
		t.Errorf("OrderedVoices() without preference = %v", got)
	}

	s.Voice = "offlist"
	if got := s.OrderedVoices(); len(got) != 5 || got[0] != "offlist" {
		t.Errorf("OrderedVoices() with off-list voice = %v", got)
	}
}

func TestAddr(t *testing.T) {
	e := EngineConfig{Host: "0.0.0.0", Port: 8391}
	if got := e.Addr(); got != "0.0.0.0:8391" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if len(tok) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("token length = %d, want 32", len(tok))
	}

	tok2, _ := GenerateToken()
	if tok == tok2 {
		t.Error("two generated tokens should not be identical")
	}
}

func TestDiffNoChanges(t *testing.T) {
	if changes := Diff(defaultConfig(), defaultConfig()); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want empty", changes)
	}
}

func TestDiffDetectsChanges(t *testing.T) {
	old := defaultConfig()
	cur := defaultConfig()
	cur.Engine.Port = 9000
	cur.Log.Level = "debug"
	cur.Engine.Token = "secret"

	changes := Diff(old, cur)
	found := map[string]bool{}
	for _, c := range changes {
		found[c] = true
	}

	want := []string{
		"engine.port: 8391 → 9000",
		"engine.token: changed",
		"log.level: info → debug",
	}
	for _, w := range want {
		if !found[w] {
			t.Errorf("missing expected change %q, got %v", w, changes)
		}
	}
}
