package bootstrap

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"password", "postgres://kind:hunter2@db:5432/kindfund", "postgres://kind@db:5432/kindfund"},
		{"redis password only", "redis://:hunter2@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"no credentials", "redis://cache:6379", "redis://cache:6379"},
		{"query password", "postgres://db/kindfund?password=hunter2", "postgres://db/kindfund?password=redacted"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := RedactURL(tt.raw); got != tt.want {
				t.Errorf("RedactURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	dsn := "postgres://kind:hunter2@db:5432/kindfund"
	err := errors.New("dial " + dsn + ": refused (password=hunter2)")

	got := SanitizeError(err, dsn, "")
	if strings.Contains(got, "hunter2") {
		t.Errorf("secret leaked: %s", got)
	}
	if !strings.Contains(got, "postgres://kind@db:5432/kindfund") {
		t.Errorf("expected redacted url in %s", got)
	}
	if SanitizeError(nil, dsn) != "" {
		t.Error("expected empty string for nil error")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json", "kindfund-api")
	logger.Debug("hello", "campaign_id", 7)

	out := buf.String()
	for _, want := range []string{`"msg":"hello"`, `"service":"kindfund-api"`, `"campaign_id":7`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}
