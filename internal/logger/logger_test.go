package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledDiscards(t *testing.T) {
	require.NoError(t, Init(Options{}))
	assert.False(t, Enabled(slog.LevelError))
	Error("dropped", "k", 1)
}

func TestDisableAfterEnable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Writer: &buf, Level: slog.LevelDebug}))
	require.True(t, Enabled(slog.LevelDebug))

	require.NoError(t, Init(Options{}))
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		assert.False(t, Enabled(level), "level %s", level)
	}
	Error("dropped")
	assert.Zero(t, buf.Len())
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Writer: &buf, Level: slog.LevelDebug}))
	t.Cleanup(func() { _ = Init(Options{}) })

	Debug("new slab", "class", 32)
	assert.Contains(t, buf.String(), "new slab")
	assert.Contains(t, buf.String(), "class=32")
}

func TestJSONOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Enabled: true, Writer: &buf, JSON: true}))
	t.Cleanup(func() { _ = Init(Options{}) })

	Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below the default info level")

	Warn("large bin trimmed", "bytes", 4096)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "large bin trimmed", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.InDelta(t, 4096, rec["bytes"], 0)
}
