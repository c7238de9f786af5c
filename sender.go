package midiclock

import (
	"runtime"
	"sync/atomic"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// clockSender is one outbound clock session.
type clockSender struct {
	bpm     float64
	running atomic.Bool
	quit    chan struct{}
	done    chan struct{}
}

// startClockSender launches the pulse goroutine and returns immediately.
// interval must be positive.
func startClockSender(out *output, bpm float64, interval time.Duration, o *options, m *metrics) *clockSender {
	s := &clockSender{
		bpm:  bpm,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.running.Store(true)
	go s.run(out, interval, o, m)
	return s
}

// run sends one pulse per interval until stopped. Send failures never end
// the session: a vanished port degrades to missed pulses.
func (s *clockSender) run(out *output, interval time.Duration, o *options, m *metrics) {
	defer close(s.done)

	if o.realtime {
		// Never unlocked: the thread is torn down with the goroutine instead
		// of returning to the scheduler with raised priority.
		runtime.LockOSThread()
		if err := setRealtimePriority(); err != nil {
			o.log.WithError(err).Warn("Clock sender running without real-time priority")
		}
	}

	pulse := midi.TimingClock()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for s.running.Load() {
		wait := interval
		if err := out.send(pulse); err != nil {
			m.pulseFailures.Inc()
			o.log.WithError(err).Warn("Failed to send MIDI clock")
			wait = o.retryBackoff
		} else {
			m.pulsesSent.Inc()
		}

		timer.Reset(wait)
		select {
		case <-s.quit:
			return
		case <-timer.C:
		}
	}
}

// stop clears the flag and blocks until the goroutine has exited.
func (s *clockSender) stop() {
	s.running.Store(false)
	close(s.quit)
	<-s.done
}
