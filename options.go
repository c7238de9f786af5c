package midiclock

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultRetryBackoff is how long the clock goroutine waits after a failed pulse.
const DefaultRetryBackoff = 50 * time.Millisecond

type options struct {
	log          logrus.FieldLogger
	retryBackoff time.Duration
	now          func() time.Time
	registerer   prometheus.Registerer
	realtime     bool
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used for port changes and pulse failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithRetryBackoff sets the pause after a failed clock pulse.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// WithClock replaces time.Now for timestamping received clock pulses.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMetrics registers the engine's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithRealtimePriority pins the clock goroutine to an OS thread and asks the
// scheduler for real-time priority. Failure to get it is logged, not fatal.
func WithRealtimePriority(enabled bool) Option {
	return func(o *options) {
		o.realtime = enabled
	}
}

func defaultOptions() options {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return options{
		log:          log,
		retryBackoff: DefaultRetryBackoff,
		now:          time.Now,
	}
}
