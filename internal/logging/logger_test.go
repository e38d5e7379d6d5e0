package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.WarnLevel},
		{"chatty", zerolog.WarnLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON("warn", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("user", "alice").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info event should be filtered at warn level")
	}
	if !strings.Contains(out, `"component":"pwvault"`) || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output: %s", out)
	}
}
