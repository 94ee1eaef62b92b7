// internal/device/rs485.go
package device

import (
	"errors"
	"time"

	"github.com/goburrow/serial"
)

// rs485Line drives a UART with kernel RS-485 RTS handling.
// The backend fixes the read timeout and speed at open, so a speed change
// re-opens the port and reads are bounded by the open-time ReadSlice.
type rs485Line struct {
	port serial.Port
	cfg  serial.Config
}

func openRS485(cfg Config) (Line, error) {
	sc := serial.Config{
		Address:  cfg.Path,
		BaudRate: cfg.Baudrate,
		DataBits: 8,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.ReadSlice,
		RS485: serial.RS485Config{
			Enabled:           true,
			RtsHighDuringSend: true,
			RtsHighAfterSend:  false,
			RxDuringTx:        false,
		},
	}
	port, err := serial.Open(&sc)
	if err != nil {
		return nil, err
	}
	return &rs485Line{port: port, cfg: sc}, nil
}

func (l *rs485Line) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

func (l *rs485Line) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	n, err := l.port.Read(p)
	if errors.Is(err, serial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

func (l *rs485Line) SetBaudrate(rate int) error {
	cfg := l.cfg
	cfg.BaudRate = rate
	if err := l.port.Close(); err != nil {
		return err
	}
	if err := l.port.Open(&cfg); err != nil {
		return err
	}
	l.cfg = cfg
	return nil
}

// Flush drains whatever is already buffered.
func (l *rs485Line) Flush() error {
	var scratch [64]byte
	for {
		n, err := l.port.Read(scratch[:])
		if errors.Is(err, serial.ErrTimeout) || n == 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *rs485Line) Close() error {
	return l.port.Close()
}
