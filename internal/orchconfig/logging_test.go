package orchconfig

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_ReturnsNonNilLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger := NewLogger(LoggingConfig{Level: "debug", Format: format})
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil", format)
		}
		if !logger.Enabled(nil, slog.LevelDebug) {
			t.Errorf("NewLogger(%q) logger should be enabled at debug level", format)
		}
	}
}
