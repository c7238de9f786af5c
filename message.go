package midiclock

import (
	"fmt"
	"math"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// MIDI timing constants
const (
	PulsesPerQuarterNote = 24

	statusTimingClock = 0xF8
	statusStart       = 0xFA
	statusContinue    = 0xFB
	statusStop        = 0xFC
	statusActiveSense = 0xFE
)

// PulseInterval returns the spacing of clock pulses at the given tempo.
// The result is only meaningful for tempos accepted by StartClockSend.
func PulseInterval(bpm float64) time.Duration {
	return time.Duration(60 / (bpm * PulsesPerQuarterNote) * float64(time.Second))
}

// pulseInterval validates bpm and returns its pulse spacing. Tempos whose
// interval overflows a Duration or truncates to zero are rejected.
func pulseInterval(bpm float64) (time.Duration, error) {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	ns := 60 / (bpm * PulsesPerQuarterNote) * float64(time.Second)
	if math.IsInf(ns, 0) || ns >= float64(math.MaxInt64) {
		return 0, fmt.Errorf("%w: %v is too slow", ErrInvalidTempo, bpm)
	}
	if ns < 1 {
		return 0, fmt.Errorf("%w: %v is too fast", ErrInvalidTempo, bpm)
	}
	return time.Duration(ns), nil
}

// controlChange builds a Control Change message. Channel is 1-based; every
// argument is saturated into its MIDI range instead of being rejected.
func controlChange(channel, control, value int) midi.Message {
	return midi.ControlChange(channelNibble(channel), dataByte(control), dataByte(value))
}

// programChange builds a Program Change message.
func programChange(channel, program int) midi.Message {
	return midi.ProgramChange(channelNibble(channel), dataByte(program))
}

func channelNibble(channel int) uint8 {
	switch {
	case channel < 1:
		return 0
	case channel > 16:
		return 15
	}
	return uint8(channel - 1)
}

func dataByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 127:
		return 127
	}
	return uint8(v)
}

func activeSense() midi.Message {
	return midi.Message{statusActiveSense}
}
