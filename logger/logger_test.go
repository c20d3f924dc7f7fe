package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"WARN", zapcore.WarnLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := Config{}
	cfg.SetDefaults()

	if cfg.Level != DefaultLevel {
		t.Errorf("level = %q, want %q", cfg.Level, DefaultLevel)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("format = %q, want %q", cfg.Format, DefaultFormat)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stdout" {
		t.Errorf("output_paths = %v, want [stdout]", cfg.OutputPaths)
	}
}

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Smoke the full interface; output goes to stdout.
	log.Debug("debug message", String("k", "v"))
	log.Info("info message", Int("n", 1))
	child := log.With(String("component", "test"))
	child.Warn("warn message", Bool("flag", true))
	_ = log.Sync()
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	if child := log.With(String("k", "v")); child == nil {
		t.Fatal("With() returned nil")
	}
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
