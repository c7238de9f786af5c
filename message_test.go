package midiclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPulseInterval(t *testing.T) {
	tests := []struct {
		bpm  float64
		want time.Duration
	}{
		{bpm: 120, want: 20833333 * time.Nanosecond},
		{bpm: 60, want: 41666666 * time.Nanosecond},
		{bpm: 250, want: 10 * time.Millisecond},
		{bpm: 600, want: 4166666 * time.Nanosecond},
	}

	for _, tt := range tests {
		got := PulseInterval(tt.bpm)
		assert.InDelta(t, float64(tt.want), float64(got), float64(time.Microsecond), "bpm %v", tt.bpm)
	}
}

func TestChannelNibble(t *testing.T) {
	tests := []struct {
		channel int
		want    uint8
	}{
		{channel: -3, want: 0},
		{channel: 0, want: 0},
		{channel: 1, want: 0},
		{channel: 10, want: 9},
		{channel: 16, want: 15},
		{channel: 17, want: 15},
		{channel: 200, want: 15},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, channelNibble(tt.channel), "channel %d", tt.channel)
	}
}

func TestDataByte(t *testing.T) {
	assert.Equal(t, uint8(0), dataByte(-1))
	assert.Equal(t, uint8(0), dataByte(0))
	assert.Equal(t, uint8(64), dataByte(64))
	assert.Equal(t, uint8(127), dataByte(127))
	assert.Equal(t, uint8(127), dataByte(128))
	assert.Equal(t, uint8(127), dataByte(1000))
}

func TestMessageEncoding(t *testing.T) {
	assert.Equal(t, []byte{0xB0, 0x01, 0x40}, []byte(controlChange(1, 1, 64)))
	assert.Equal(t, []byte{0xBF, 0x7F, 0x00}, []byte(controlChange(99, 300, -5)))
	assert.Equal(t, []byte{0xC4, 0x0A}, []byte(programChange(5, 10)))
	assert.Equal(t, []byte{0xFE}, []byte(activeSense()))
}
