// internal/status/code.go
package status

import (
	"errors"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/frame"
)

// Code extracts a best-effort uint16 code from an error.
// If the error does not expose a code, returns CodeGeneric.
func Code(err error) uint16 {
	if err == nil {
		return CodeOK
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}

	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return CodeExceptionBase | uint16(me.ExceptionCode)
	}
	var fe *frame.Error
	if errors.As(err, &fe) {
		return CodeFrame
	}
	if errors.Is(err, device.ErrTimeout) {
		return CodeTimeout
	}
	var ioe *device.IOError
	if errors.As(err, &ioe) || errors.Is(err, device.ErrNotOpen) {
		return CodeTransport
	}

	return CodeGeneric
}
