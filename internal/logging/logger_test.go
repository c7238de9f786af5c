package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.WithField("port", "Synth A").Warn("Failed to send MIDI clock")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Failed to send MIDI clock")
	assert.Contains(t, out, `port="Synth A"`)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("loud", &bytes.Buffer{})
	assert.Error(t, err)
}
