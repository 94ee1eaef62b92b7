// internal/device/errors.go
package device

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Read when the deadline passes first.
	ErrTimeout = errors.New("device: read timeout")
	// ErrNotOpen is returned for I/O on a closed device.
	ErrNotOpen = errors.New("device: not open")
)

// IOError wraps a failure of the underlying serial line.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
