// Package rtmidi implements a gomidi driver on top of the RtMidi C library.
//
// Enumeration opens a short-lived RtMidi handle, reads the port names and
// frees it again, so every call to Ins or Outs sees the current hardware.
// Each opened port owns its own handle.
package rtmidi

import (
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
)

var errPortNotOpen = errors.New("port not open")

// Driver is a drivers.Driver backed by RtMidi.
type Driver struct {
	clientName string

	mu     sync.Mutex
	opened map[drivers.Port]struct{}
}

var _ drivers.Driver = (*Driver)(nil)

// New checks that the MIDI subsystem is reachable and returns a driver.
// clientName is used as the name of every port the driver opens.
func New(clientName string) (*Driver, error) {
	probe, err := newMidiIn()
	if err != nil {
		return nil, err
	}
	probe.close()

	return &Driver{
		clientName: clientName,
		opened:     make(map[drivers.Port]struct{}),
	}, nil
}

func (d *Driver) String() string {
	return "rtmidi"
}

// Ins enumerates the input ports.
func (d *Driver) Ins() ([]drivers.In, error) {
	h, err := newMidiIn()
	if err != nil {
		return nil, err
	}
	defer h.close()

	count := h.portCount()
	ins := make([]drivers.In, count)
	for i := 0; i < count; i++ {
		ins[i] = &inPort{driver: d, number: i, name: h.portName(i)}
	}
	return ins, nil
}

// Outs enumerates the output ports.
func (d *Driver) Outs() ([]drivers.Out, error) {
	h, err := newMidiOut()
	if err != nil {
		return nil, err
	}
	defer h.close()

	count := h.portCount()
	outs := make([]drivers.Out, count)
	for i := 0; i < count; i++ {
		outs[i] = &outPort{driver: d, number: i, name: h.portName(i)}
	}
	return outs, nil
}

// Close closes every port the driver opened.
func (d *Driver) Close() error {
	d.mu.Lock()
	ports := make([]drivers.Port, 0, len(d.opened))
	for p := range d.opened {
		ports = append(ports, p)
	}
	d.mu.Unlock()

	var errs []error
	for _, p := range ports {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) track(p drivers.Port) {
	d.mu.Lock()
	d.opened[p] = struct{}{}
	d.mu.Unlock()
}

func (d *Driver) untrack(p drivers.Port) {
	d.mu.Lock()
	delete(d.opened, p)
	d.mu.Unlock()
}

type inPort struct {
	driver *Driver
	number int
	name   string

	mu        sync.Mutex
	h         *midiIn
	listening bool
}

func (p *inPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h != nil {
		return nil
	}
	h, err := newMidiIn()
	if err != nil {
		return err
	}
	if err := h.openPort(uint(p.number), p.driver.clientName+" in"); err != nil {
		h.close()
		return err
	}
	p.h = h
	p.driver.track(p)
	return nil
}

func (p *inPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h == nil {
		return nil
	}
	if p.listening {
		p.h.cancelCallback()
		p.listening = false
	}
	p.h.close()
	p.h = nil
	p.driver.untrack(p)
	return nil
}

func (p *inPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.h != nil
}

func (p *inPort) Number() int             { return p.number }
func (p *inPort) String() string          { return p.name }
func (p *inPort) Underlying() interface{} { return p.h }

// Listen installs onMsg as the receive callback. The timestamp passed to
// onMsg is the delta to the previous message in milliseconds.
func (p *inPort) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h == nil {
		return nil, fmt.Errorf("listen on %q: %w", p.name, errPortNotOpen)
	}
	if p.listening {
		return nil, fmt.Errorf("listen on %q: already listening", p.name)
	}

	p.h.ignoreTypes(!config.SysEx, !config.TimeCode, !config.ActiveSense)
	p.h.setCallback(func(msg []byte, delta float64) {
		onMsg(msg, int32(delta*1000))
	})
	p.listening = true

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.h != nil && p.listening {
			p.h.cancelCallback()
			p.listening = false
		}
	}, nil
}

type outPort struct {
	driver *Driver
	number int
	name   string

	mu sync.Mutex
	h  *midiOut
}

func (p *outPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h != nil {
		return nil
	}
	h, err := newMidiOut()
	if err != nil {
		return err
	}
	if err := h.openPort(uint(p.number), p.driver.clientName+" out"); err != nil {
		h.close()
		return err
	}
	p.h = h
	p.driver.track(p)
	return nil
}

func (p *outPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h == nil {
		return nil
	}
	p.h.close()
	p.h = nil
	p.driver.untrack(p)
	return nil
}

func (p *outPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.h != nil
}

func (p *outPort) Number() int             { return p.number }
func (p *outPort) String() string          { return p.name }
func (p *outPort) Underlying() interface{} { return p.h }

func (p *outPort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.h == nil {
		return fmt.Errorf("send to %q: %w", p.name, errPortNotOpen)
	}
	return p.h.sendMessage(data)
}
