package theme

import "testing"

func TestForTheme(t *testing.T) {
	if got := ForTheme("light"); got != Light {
		t.Fatal("light theme not returned")
	}
	if got := ForTheme("dark"); got != Dark {
		t.Fatal("dark theme not returned")
	}
	if got := ForTheme("moonlit"); got != Dark {
		t.Fatal("unknown theme should fall back to dark")
	}
}

func TestPlaybackGlyph(t *testing.T) {
	cases := []struct {
		state string
		want  string
	}{
		{"playing", "▶"},
		{"paused", "‖"},
		{"stopped", "■"},
		{"", "·"},
	}
	for _, tc := range cases {
		if got := PlaybackGlyph(tc.state); got != tc.want {
			t.Errorf("PlaybackGlyph(%q) = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestGaugeColor(t *testing.T) {
	p := Dark
	if p.GaugeColor(0.2) != p.Success {
		t.Error("low utilization should be green")
	}
	if p.GaugeColor(0.6) != p.Warning {
		t.Error("mid utilization should be amber")
	}
	if p.GaugeColor(0.95) != p.Danger {
		t.Error("high utilization should be red")
	}
}
