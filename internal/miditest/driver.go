// Package miditest provides an in-memory gomidi driver for tests.
//
// Outputs record every message they are sent; inputs deliver messages
// injected with Feed synchronously to the installed listener. Enumeration,
// open and send failures can be injected per port.
package miditest

import (
	"errors"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrClosed is returned when sending to a port that is not open.
var ErrClosed = errors.New("miditest: port closed")

// Driver is an in-memory drivers.Driver.
type Driver struct {
	mu      sync.Mutex
	ins     []*In
	outs    []*Out
	insErr  error
	outsErr error
}

var _ drivers.Driver = (*Driver)(nil)

// New returns a driver with no ports.
func New() *Driver {
	return &Driver{}
}

// AddOut appends an output port.
func (d *Driver) AddOut(name string) *Out {
	d.mu.Lock()
	defer d.mu.Unlock()

	o := &Out{name: name, number: len(d.outs)}
	d.outs = append(d.outs, o)
	return o
}

// AddIn appends an input port.
func (d *Driver) AddIn(name string) *In {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := &In{name: name, number: len(d.ins)}
	d.ins = append(d.ins, i)
	return i
}

// FailEnumeration makes Ins and Outs return err. A nil err clears it.
func (d *Driver) FailEnumeration(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.insErr = err
	d.outsErr = err
}

func (d *Driver) Ins() ([]drivers.In, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.insErr != nil {
		return nil, d.insErr
	}
	ins := make([]drivers.In, len(d.ins))
	for i, in := range d.ins {
		ins[i] = in
	}
	return ins, nil
}

func (d *Driver) Outs() ([]drivers.Out, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outsErr != nil {
		return nil, d.outsErr
	}
	outs := make([]drivers.Out, len(d.outs))
	for i, out := range d.outs {
		outs[i] = out
	}
	return outs, nil
}

func (d *Driver) String() string { return "miditest" }

func (d *Driver) Close() error {
	d.mu.Lock()
	ins, outs := d.ins, d.outs
	d.mu.Unlock()

	for _, in := range ins {
		_ = in.Close()
	}
	for _, out := range outs {
		_ = out.Close()
	}
	return nil
}

// Out is a recording output port.
type Out struct {
	name   string
	number int

	mu      sync.Mutex
	open    bool
	opens   int
	sent    [][]byte
	openErr error
	sendErr error
}

func (o *Out) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return o.openErr
	}
	o.open = true
	o.opens++
	return nil
}

func (o *Out) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = false
	return nil
}

func (o *Out) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

func (o *Out) Number() int             { return o.number }
func (o *Out) String() string          { return o.name }
func (o *Out) Underlying() interface{} { return nil }

func (o *Out) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.open {
		return fmt.Errorf("send to %q: %w", o.name, ErrClosed)
	}
	if o.sendErr != nil {
		return o.sendErr
	}
	o.sent = append(o.sent, append([]byte(nil), data...))
	return nil
}

// FailOpen makes Open return err. A nil err clears it.
func (o *Out) FailOpen(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openErr = err
}

// FailSend makes Send return err. A nil err clears it.
func (o *Out) FailSend(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sendErr = err
}

// Messages returns a copy of everything sent so far.
func (o *Out) Messages() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := make([][]byte, len(o.sent))
	for i, m := range o.sent {
		msgs[i] = append([]byte(nil), m...)
	}
	return msgs
}

// Count returns how many sent messages start with status.
func (o *Out) Count(status byte) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, m := range o.sent {
		if len(m) > 0 && m[0] == status {
			n++
		}
	}
	return n
}

// Last returns the most recent message, or nil.
func (o *Out) Last() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.sent) == 0 {
		return nil
	}
	return append([]byte(nil), o.sent[len(o.sent)-1]...)
}

// Reset forgets the recorded messages.
func (o *Out) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = nil
}

// In is an input port fed by the test.
type In struct {
	name   string
	number int

	mu       sync.Mutex
	open     bool
	openErr  error
	listener func([]byte, int32)
	config   drivers.ListenConfig
}

func (i *In) Open() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.openErr != nil {
		return i.openErr
	}
	i.open = true
	return nil
}

func (i *In) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.open = false
	i.listener = nil
	return nil
}

func (i *In) IsOpen() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.open
}

func (i *In) Number() int             { return i.number }
func (i *In) String() string          { return i.name }
func (i *In) Underlying() interface{} { return nil }

func (i *In) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.open {
		return nil, fmt.Errorf("listen on %q: %w", i.name, ErrClosed)
	}
	i.listener = onMsg
	i.config = config
	return func() {
		i.mu.Lock()
		i.listener = nil
		i.mu.Unlock()
	}, nil
}

// FailOpen makes Open return err. A nil err clears it.
func (i *In) FailOpen(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.openErr = err
}

// Listening reports whether a listener is installed.
func (i *In) Listening() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listener != nil
}

// Config returns the ListenConfig of the installed listener.
func (i *In) Config() drivers.ListenConfig {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.config
}

// Feed delivers msg to the listener, if any, on the calling goroutine.
func (i *In) Feed(msg ...byte) {
	i.mu.Lock()
	fn := i.listener
	i.mu.Unlock()

	if fn != nil {
		fn(msg, 0)
	}
}
