package midiclock

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	pulsesSent    prometheus.Counter
	pulseFailures prometheus.Counter
	messagesSent  *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		pulsesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midiclock_pulses_sent_total",
			Help: "Total number of timing clock pulses written to the output port",
		}),
		pulseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "midiclock_pulse_failures_total",
			Help: "Total number of timing clock pulses the output port rejected",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "midiclock_messages_sent_total",
			Help: "Total number of non-pulse messages written to the output port",
		}, []string{"type"}),
	}
}

// register adds the counters plus gauges that read the engine at scrape time.
func (m *metrics) register(reg prometheus.Registerer, e *Engine) {
	reg.MustRegister(
		m.pulsesSent,
		m.pulseFailures,
		m.messagesSent,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "midiclock_send_bpm",
			Help: "Tempo of the outbound clock, 0 when stopped",
		}, func() float64 {
			return e.SendStatus().BPM
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "midiclock_follow_running",
			Help: "1 when the followed clock is running",
		}, func() float64 {
			if e.ClockStatus().Running {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "midiclock_follow_bpm",
			Help: "Estimated tempo of the followed clock, 0 when unknown",
		}, func() float64 {
			if bpm := e.ClockStatus().BPM; bpm != nil {
				return *bpm
			}
			return 0
		}),
	)
}
