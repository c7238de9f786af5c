package midiclock

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// output is the single live output connection. The clock goroutine and the
// command caller both write through it; mu is held for one Send at a time.
type output struct {
	mu   sync.Mutex
	port drivers.Out
}

// send writes msg to the open port.
func (o *output) send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port == nil {
		return ErrNoOutputSelected
	}
	if err := o.port.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

func (o *output) isOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port != nil
}

// replace swaps in a new port and closes the previous one.
func (o *output) replace(port drivers.Out) error {
	o.mu.Lock()
	prev := o.port
	o.port = port
	o.mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

func (o *output) close() error {
	return o.replace(nil)
}
