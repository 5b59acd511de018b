package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestOptionsFor(t *testing.T) {
	dev := optionsFor("development")
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "info", dev.Level)
	assert.Equal(t, "stdout", dev.Output)

	prod := optionsFor("production")
	assert.Equal(t, "json", prod.Format)
	assert.Equal(t, "production", prod.Env)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseLevel("chatty")
	assert.Error(t, err)
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Output: filepath.Join(t.TempDir(), "missing", "dir", "ledger.log")})
	assert.Error(t, err)
}

func TestNew_WritesJSONWithServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	log, err := New(Options{Level: "debug", Format: "json", Output: path, Service: "stockcore", Env: "test"})
	require.NoError(t, err)

	log.Debug("lot added")
	log.Info("balance posted")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "balance posted", entry["msg"])
	assert.Equal(t, "stockcore", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNew_LevelFiltersEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	log, err := New(Options{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")
}

func TestNewFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	log, err := NewFromConfig("production", config.LogConfig{Level: "error", Output: path})
	require.NoError(t, err)

	log.Warn("below threshold")
	log.Error("transfer receive failed")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := strings.TrimSpace(string(raw))
	assert.NotContains(t, out, "below threshold")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry), "production preset encodes JSON")
	assert.Equal(t, "production", entry["env"])
	assert.Contains(t, entry, "stacktrace")
}

func TestNewFromConfig_Console(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	log, err := NewFromConfig("development", config.LogConfig{Output: path})
	require.NoError(t, err)

	log.Info("batch started")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "batch started")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(string(raw)))))
}
