// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"

	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/frame"
	"github.com/tamzrod/rackmond/internal/status"
)

type ignoredError struct{}

func (ignoredError) Error() string { return "engine: address ignored" }

// Code lets status classification recognise ignored addresses.
func (ignoredError) Code() uint16 { return status.CodeIgnored }

// ErrIgnored is returned, without touching the bus, for commands to an
// ignored address. It marks an intentionally absent device, not a failure.
var ErrIgnored error = ignoredError{}

func ignoredErr(addr uint8) error {
	return fmt.Errorf("%w: 0x%02x", ErrIgnored, addr)
}

// ErrorKind is the coarse class of a command error.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindIgnored
	KindTimeout
	KindTransport
	KindFrame
	KindException
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIgnored:
		return "ignored"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindFrame:
		return "frame"
	case KindException:
		return "exception"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Transient reports whether a retry may succeed.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindTimeout, KindTransport, KindFrame:
		return true
	}
	return false
}

// Classify maps an error returned by Command to its kind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrIgnored) {
		return KindIgnored
	}
	if errors.Is(err, device.ErrTimeout) {
		return KindTimeout
	}
	var fe *frame.Error
	if errors.As(err, &fe) {
		if fe.Kind == frame.ErrException {
			return KindException
		}
		return KindFrame
	}
	return KindTransport
}
