package midiclock

import (
	"sync"
	"time"
)

// Status is a snapshot of the followed clock. BPM is nil until a full
// quarter note of pulses has been measured.
type Status struct {
	Running bool     `json:"running"`
	BPM     *float64 `json:"bpm"`
}

// clockState is written by the follower callback and read by status callers.
type clockState struct {
	mu       sync.Mutex
	lastTick time.Time
	ticks    int
	bpm      *float64
	running  bool
	poisoned bool
	gen      uint64 // bumped each time a listener is retired
}

// update runs fn under the lock. A panic inside fn poisons the state the way
// a panicking holder would leave any lock-protected data half-written.
func (s *clockState) update(fn func(s *clockState)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return ErrLockFailure
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			err = ErrLockFailure
		}
	}()
	fn(s)
	return nil
}

// updateFrom is update for a listener of generation gen. It is a no-op once
// that generation has been retired.
func (s *clockState) updateFrom(gen uint64, fn func(s *clockState)) error {
	return s.update(func(s *clockState) {
		if s.gen == gen {
			fn(s)
		}
	})
}

func (s *clockState) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// retire invalidates every listener opened so far. Callbacks still in flight
// after their port was closed become no-ops.
func (s *clockState) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
}

func (s *clockState) snapshot() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return Status{}, ErrLockFailure
	}
	st := Status{Running: s.running}
	if s.bpm != nil {
		bpm := *s.bpm
		st.BPM = &bpm
	}
	return st, nil
}

// reset restores the default state and clears poisoning.
func (s *clockState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastTick = time.Time{}
	s.ticks = 0
	s.bpm = nil
	s.running = false
	s.poisoned = false
}
