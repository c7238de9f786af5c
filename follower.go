package midiclock

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// follower is an open input port with the clock handler installed.
type follower struct {
	port drivers.In
	stop func()
	gen  uint64
}

// openFollower opens port and feeds everything it receives into state.
// The listener runs on the driver's delivery thread, so it does nothing
// beyond the locked state update. Updates are tagged with the state's
// generation at open time and dropped once that generation is retired.
func openFollower(port drivers.In, state *clockState, now func() time.Time) (*follower, error) {
	if err := port.Open(); err != nil {
		return nil, fmt.Errorf("%w: input %q: %v", ErrConnection, port.String(), err)
	}
	gen := state.generation()

	// TimeCode must be enabled, otherwise timing clock bytes are filtered
	// out by the driver before they reach us.
	stop, err := port.Listen(func(msg []byte, _ int32) {
		state.handleClockMessage(gen, msg, now())
	}, drivers.ListenConfig{TimeCode: true})
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: listen on %q: %v", ErrConnection, port.String(), err)
	}

	return &follower{port: port, stop: stop, gen: gen}, nil
}

func (f *follower) close() error {
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
	return f.port.Close()
}

// handleClockMessage classifies an incoming message by its first byte and
// updates the tempo estimate. Messages from a retired generation are ignored.
func (s *clockState) handleClockMessage(gen uint64, msg []byte, now time.Time) {
	if len(msg) == 0 {
		return
	}

	switch msg[0] {
	case statusTimingClock:
		_ = s.updateFrom(gen, func(s *clockState) {
			var elapsed time.Duration
			if !s.lastTick.IsZero() {
				elapsed = now.Sub(s.lastTick)
			}
			s.ticks++
			if s.ticks >= PulsesPerQuarterNote {
				// Only the most recent gap is used, scaled as if it were
				// a whole quarter note divided by 24.
				if elapsed > 0 {
					bpm := 60 / (elapsed.Seconds() / PulsesPerQuarterNote)
					s.bpm = &bpm
					s.running = true
				}
				s.ticks = 0
			}
			s.lastTick = now
		})

	case statusStart, statusContinue:
		_ = s.updateFrom(gen, func(s *clockState) {
			s.running = true
			s.ticks = 0
			s.lastTick = time.Time{}
		})

	case statusStop:
		_ = s.updateFrom(gen, func(s *clockState) {
			s.running = false
		})
	}
}
