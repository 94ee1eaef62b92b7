// internal/frame/errors.go
package frame

import (
	"fmt"

	"github.com/goburrow/modbus"
)

// ErrorKind classifies a frame error.
type ErrorKind int

const (
	// ErrShort is a frame below the minimum ADU size or cut off mid read.
	ErrShort ErrorKind = iota + 1
	// ErrCRC is a checksum mismatch.
	ErrCRC
	// ErrLength is a frame whose size disagrees with its function code.
	ErrLength
	// ErrAddress is a response from a slave other than the one asked.
	ErrAddress
	// ErrFunction is a response to a different function code.
	ErrFunction
	// ErrException is a well formed modbus exception response.
	ErrException
)

func (k ErrorKind) String() string {
	switch k {
	case ErrShort:
		return "truncated frame"
	case ErrCRC:
		return "crc mismatch"
	case ErrLength:
		return "length mismatch"
	case ErrAddress:
		return "address mismatch"
	case ErrFunction:
		return "function code mismatch"
	case ErrException:
		return "exception response"
	}
	return fmt.Sprintf("frame error %d", int(k))
}

// Error is returned for any frame that fails validation.
type Error struct {
	Kind ErrorKind
	Len  int
	Got  uint16
	Want uint16

	// Exception is set for ErrException.
	Exception *modbus.ModbusError
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrShort:
		return fmt.Sprintf("frame: %s: %d bytes", e.Kind, e.Len)
	case ErrCRC:
		return fmt.Sprintf("frame: %s: got=0x%04x want=0x%04x", e.Kind, e.Got, e.Want)
	case ErrLength:
		return fmt.Sprintf("frame: %s: %d bytes, want %d", e.Kind, e.Len, e.Want)
	case ErrAddress, ErrFunction:
		return fmt.Sprintf("frame: %s: got=%d want=%d", e.Kind, e.Got, e.Want)
	case ErrException:
		if e.Exception != nil {
			return "frame: " + e.Exception.Error()
		}
	}
	return "frame: " + e.Kind.String()
}

// Unwrap exposes the modbus exception, if any.
func (e *Error) Unwrap() error {
	if e.Exception == nil {
		return nil
	}
	return e.Exception
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ExceptionCode reports the modbus exception code, as a coder for status
// classification.
func (e *Error) ExceptionCode() byte {
	if e.Exception == nil {
		return 0
	}
	return e.Exception.ExceptionCode
}
