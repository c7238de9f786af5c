//go:build !linux && !windows && !(darwin && cgo)

package midiclock

import "errors"

func setRealtimePriority() error {
	return errors.New("real-time priority not supported on this platform")
}
