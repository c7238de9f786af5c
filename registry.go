package midiclock

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// ListOutputPorts returns the names of the output ports the driver currently sees.
// The position of a name is the index accepted by SelectOutput, valid only until
// the next enumeration.
func ListOutputPorts(drv drivers.Driver) ([]string, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortEnumeration, err)
	}
	ports := make([]string, len(outs))
	for i, out := range outs {
		ports[i] = out.String()
	}
	return ports, nil
}

// ListInputPorts returns the names of the input ports the driver currently sees.
func ListInputPorts(drv drivers.Driver) ([]string, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortEnumeration, err)
	}
	ports := make([]string, len(ins))
	for i, in := range ins {
		ports[i] = in.String()
	}
	return ports, nil
}

func outputAt(drv drivers.Driver, index int) (drivers.Out, error) {
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortEnumeration, err)
	}
	if index < 0 || index >= len(outs) {
		return nil, fmt.Errorf("%w: output %d of %d", ErrPortIndexOutOfRange, index, len(outs))
	}
	return outs[index], nil
}

func inputAt(drv drivers.Driver, index int) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortEnumeration, err)
	}
	if index < 0 || index >= len(ins) {
		return nil, fmt.Errorf("%w: input %d of %d", ErrPortIndexOutOfRange, index, len(ins))
	}
	return ins[index], nil
}

// findPort returns the index of the port called name. An exact match wins;
// otherwise the first case-insensitive substring match is used.
func findPort(names []string, name string) (int, error) {
	for i, n := range names {
		if n == name {
			return i, nil
		}
	}
	for i, n := range names {
		if containsCI(n, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
