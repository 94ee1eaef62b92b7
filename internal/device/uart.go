// internal/device/uart.go
package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// uartLine drives a plain UART. Speed changes are applied in place.
type uartLine struct {
	port serial.Port
	mode serial.Mode
}

func openUART(cfg Config) (Line, error) {
	mode := serial.Mode{
		BaudRate: cfg.Baudrate,
		DataBits: 8,
	}
	switch cfg.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", cfg.StopBits)
	}

	port, err := serial.Open(cfg.Path, &mode)
	if err != nil {
		return nil, err
	}
	return &uartLine{port: port, mode: mode}, nil
}

func (l *uartLine) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

func (l *uartLine) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	if err := l.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	return l.port.Read(p)
}

func (l *uartLine) SetBaudrate(rate int) error {
	mode := l.mode
	mode.BaudRate = rate
	if err := l.port.SetMode(&mode); err != nil {
		return err
	}
	l.mode = mode
	return nil
}

func (l *uartLine) Flush() error {
	return l.port.ResetInputBuffer()
}

func (l *uartLine) Close() error {
	return l.port.Close()
}
