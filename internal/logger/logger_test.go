package logger

import (
	"bytes"
	"github.com/go-json-experiment/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "production"})

	log.Info("server started", "port", "8080")

	var entry map[string]any
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err, "production output should be a JSON object per line")
	assert.Equal(t, "server started", entry["msg"])
	assert.Equal(t, "8080", entry["port"])
}

func TestNew_DevelopmentUsesPretty(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development"})

	log.Info("server started", "port", "8080")

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "server started")
	assert.Contains(t, out, "port=8080")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Environment: "development", Level: slog.LevelWarn})

	log.Debug("noise")
	log.Info("more noise")
	log.Warn("something odd")

	out := buf.String()
	assert.NotContains(t, out, "noise")
	assert.Contains(t, out, "something odd")
}

func TestPrettyHandler_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Debug("d")
	log.Info("i")
	log.Warn("w")
	log.Error("e")

	out := buf.String()
	for _, abbrev := range []string{"DBG", "INF", "WRN", "ERR"} {
		assert.Contains(t, out, abbrev)
	}
}

func TestPrettyHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.With("request_id", "abc123").Info("handled")

	out := buf.String()
	assert.Contains(t, out, "request_id=abc123")
	assert.Contains(t, out, "handled")
}

func TestPrettyHandler_OneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Info("first")
	log.Info("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
}
