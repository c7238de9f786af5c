package midiclock

import "errors"

// ErrPortEnumeration is returned when the MIDI subsystem cannot enumerate its ports.
var ErrPortEnumeration = errors.New("midi port enumeration failed")

// ErrPortIndexOutOfRange is returned when a port index does not exist in the current enumeration.
var ErrPortIndexOutOfRange = errors.New("midi port index out of range")

// ErrPortNotFound is returned when no port matches a requested name.
var ErrPortNotFound = errors.New("midi port not found")

// ErrConnection is returned when a port exists but cannot be opened.
var ErrConnection = errors.New("midi connection failed")

// ErrNoOutputSelected is returned by operations that need an open output port.
var ErrNoOutputSelected = errors.New("no midi output selected")

// ErrInvalidTempo is returned for tempos that are not strictly positive and
// finite, or whose pulse interval cannot be represented as a time.Duration.
var ErrInvalidTempo = errors.New("invalid bpm")

// ErrSend is returned when the output port rejects a message.
var ErrSend = errors.New("midi send failed")

// ErrLockFailure is returned when the shared clock state was left inconsistent by a panicking update.
var ErrLockFailure = errors.New("midi clock state poisoned")

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("midi engine closed")
