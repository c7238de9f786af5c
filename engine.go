// Package midiclock drives an outbound MIDI clock and follows an inbound one.
//
// An Engine owns at most one output port, used for clock pulses as well as
// Control Change and Program Change messages, and at most one input port on
// which incoming clock is measured. Ports are addressed by their index in the
// driver's most recent enumeration.
package midiclock

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// SendStatus describes the outbound clock.
type SendStatus struct {
	Running bool    `json:"running"`
	BPM     float64 `json:"bpm"`
}

// Engine is the command surface of the clock core. All methods are safe for
// concurrent use.
type Engine struct {
	drv     drivers.Driver
	opts    options
	metrics *metrics

	mu       sync.Mutex
	out      output
	selected int
	sender   *clockSender
	follow   *follower
	closed   bool

	state   clockState
	sendBPM atomic.Uint64
}

// New creates an engine on top of drv. The engine does not close drv.
func New(drv drivers.Driver, opts ...Option) *Engine {
	e := &Engine{
		drv:      drv,
		opts:     defaultOptions(),
		metrics:  newMetrics(),
		selected: -1,
	}
	for _, opt := range opts {
		opt(&e.opts)
	}
	if e.opts.registerer != nil {
		e.metrics.register(e.opts.registerer, e)
	}
	return e
}

// ListOutputs returns the names of the available output ports.
func (e *Engine) ListOutputs() ([]string, error) {
	return ListOutputPorts(e.drv)
}

// ListInputs returns the names of the available input ports.
func (e *Engine) ListInputs() ([]string, error) {
	return ListInputPorts(e.drv)
}

// SelectOutput makes the output at index the live output port. Any running
// clock session is stopped first and the previous port is closed before the
// new one is opened; on failure no output is selected.
func (e *Engine) SelectOutput(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.selectOutputLocked(index)
}

// SelectOutputByName selects the output whose name matches name.
func (e *Engine) SelectOutputByName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	names, err := ListOutputPorts(e.drv)
	if err != nil {
		return err
	}
	index, err := findPort(names, name)
	if err != nil {
		return err
	}
	return e.selectOutputLocked(index)
}

func (e *Engine) selectOutputLocked(index int) error {
	e.stopClockSendLocked(false)

	if err := e.out.close(); err != nil {
		e.opts.log.WithError(err).Warn("Failed to close previous MIDI output")
	}
	e.selected = -1

	port, err := outputAt(e.drv, index)
	if err != nil {
		return err
	}
	if err := port.Open(); err != nil {
		return fmt.Errorf("%w: output %q: %v", ErrConnection, port.String(), err)
	}

	_ = e.out.replace(port)
	e.selected = index
	e.opts.log.WithFields(logrus.Fields{"port": port.String(), "index": index}).Info("Opened MIDI output")
	return nil
}

// SelectedOutput returns the index of the open output port.
func (e *Engine) SelectedOutput() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, e.selected >= 0
}

// SendCC sends a Control Change. Channel is 1-16; out-of-range arguments are
// saturated.
func (e *Engine) SendCC(channel, control, value int) error {
	return e.sendMessage("cc", controlChange(channel, control, value))
}

// SendPC sends a Program Change. Channel is 1-16; out-of-range arguments are
// saturated.
func (e *Engine) SendPC(channel, program int) error {
	return e.sendMessage("pc", programChange(channel, program))
}

// Ping sends Active Sensing and reports how long the port took to accept it.
func (e *Engine) Ping() (time.Duration, error) {
	start := time.Now()
	if err := e.sendMessage("active_sense", activeSense()); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (e *Engine) sendMessage(kind string, msg midi.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.out.send(msg); err != nil {
		return err
	}
	e.metrics.messagesSent.WithLabelValues(kind).Inc()
	return nil
}

// StartClockSend starts sending clock pulses at bpm, restarting any session
// already running, and sends a Start message once the pulses are under way.
// If that Start message fails the pulses keep running and the error is
// returned.
func (e *Engine) StartClockSend(bpm float64) error {
	interval, err := pulseInterval(bpm)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.out.isOpen() {
		return ErrNoOutputSelected
	}

	e.stopClockSendLocked(false)
	e.sender = startClockSender(&e.out, bpm, interval, &e.opts, e.metrics)
	e.sendBPM.Store(math.Float64bits(bpm))
	e.opts.log.WithField("bpm", bpm).Info("MIDI clock started")

	if err := e.out.send(midi.Start()); err != nil {
		return err
	}
	e.metrics.messagesSent.WithLabelValues("start").Inc()
	return nil
}

// StopClockSend stops the pulse goroutine, waits for it to exit and then
// sends a best-effort Stop message.
func (e *Engine) StopClockSend() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopClockSendLocked(true)
}

func (e *Engine) stopClockSendLocked(sendStop bool) {
	if e.sender != nil {
		e.sender.stop()
		e.sender = nil
		e.sendBPM.Store(0)
		e.opts.log.Info("MIDI clock stopped")
	}
	if !sendStop {
		return
	}
	if err := e.out.send(midi.Stop()); err != nil {
		e.opts.log.WithError(err).Debug("Stop message not delivered")
		return
	}
	e.metrics.messagesSent.WithLabelValues("stop").Inc()
}

// SendStatus reports whether outbound clock is running and at what tempo.
func (e *Engine) SendStatus() SendStatus {
	bpm := math.Float64frombits(e.sendBPM.Load())
	return SendStatus{Running: bpm > 0, BPM: bpm}
}

// EnableClockFollow starts measuring clock arriving on the input at index,
// replacing any input already followed.
func (e *Engine) EnableClockFollow(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.enableClockFollowLocked(index)
}

// EnableClockFollowByName follows the input whose name matches name.
func (e *Engine) EnableClockFollowByName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	names, err := ListInputPorts(e.drv)
	if err != nil {
		return err
	}
	index, err := findPort(names, name)
	if err != nil {
		return err
	}
	return e.enableClockFollowLocked(index)
}

func (e *Engine) enableClockFollowLocked(index int) error {
	e.closeFollowLocked()

	port, err := inputAt(e.drv, index)
	if err != nil {
		return err
	}
	f, err := openFollower(port, &e.state, e.opts.now)
	if err != nil {
		return err
	}
	e.follow = f
	e.opts.log.WithFields(logrus.Fields{"port": port.String(), "index": index}).Info("Following MIDI clock")
	return nil
}

// DisableClockFollow closes the followed input and forgets the estimate.
func (e *Engine) DisableClockFollow() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeFollowLocked()
	e.state.reset()
}

func (e *Engine) closeFollowLocked() {
	if e.follow == nil {
		return
	}
	e.state.retire()
	if err := e.follow.close(); err != nil {
		e.opts.log.WithError(err).Warn("Failed to close MIDI input")
	}
	e.follow = nil
}

// ClockStatus returns the followed clock's running flag and tempo estimate.
// It never fails; an unreadable state reports as stopped with no estimate.
func (e *Engine) ClockStatus() Status {
	st, err := e.state.snapshot()
	if err != nil {
		return Status{}
	}
	return st
}

// Close stops sending, stops following and closes the output port.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.stopClockSendLocked(e.sender != nil)
	e.closeFollowLocked()
	e.state.reset()
	e.selected = -1
	return e.out.close()
}
