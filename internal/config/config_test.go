package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "midiclock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
output: "USB MIDI"
input: "1"
channel: 10
bpm: 98.5
realtime: true
retry_backoff: 20ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "USB MIDI", cfg.Output)
	assert.Equal(t, "1", cfg.Input)
	assert.Equal(t, 10, cfg.Channel)
	assert.Equal(t, 98.5, cfg.BPM)
	assert.True(t, cfg.Realtime)
	assert.Equal(t, 20*time.Millisecond, cfg.RetryBackoff)
	// Unset keys keep their defaults.
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"channel":   "channel: 17\n",
		"bpm":       "bpm: 0\n",
		"backoff":   "retry_backoff: -1s\n",
		"malformed": "bpm: [fast\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestParsePort(t *testing.T) {
	ref, err := ParsePort("2")
	require.NoError(t, err)
	assert.True(t, ref.ByIndex())
	assert.Equal(t, 2, ref.Index)

	ref, err = ParsePort(" USB MIDI ")
	require.NoError(t, err)
	assert.False(t, ref.ByIndex())
	assert.Equal(t, "USB MIDI", ref.Name)

	_, err = ParsePort("-1")
	assert.Error(t, err)
	_, err = ParsePort("")
	assert.Error(t, err)
}
