// internal/device/device.go
package device

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind selects the serial backend. The set is closed and resolved once by New.
type Kind int

const (
	// KindUART is a plain UART with no transceiver control.
	KindUART Kind = iota
	// KindRS485 is a UART driving an RS-485 transceiver through RTS.
	KindRS485
)

func (k Kind) String() string {
	switch k {
	case KindUART:
		return "uart"
	case KindRS485:
		return "rs485"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a config string to a Kind. Empty means uart.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "uart":
		return KindUART, nil
	case "rs485":
		return KindRS485, nil
	}
	return 0, fmt.Errorf("device: unknown type %q", s)
}

// DefaultReadSlice bounds a single backend read inside Read.
const DefaultReadSlice = 20 * time.Millisecond

// Config describes one physical bus.
type Config struct {
	Path     string
	Kind     Kind
	Baudrate int
	Parity   string // N, E, O
	StopBits int

	ReadSlice time.Duration
}

// Line is the byte level serial line underneath a Device.
type Line interface {
	Write(p []byte) (int, error)
	// ReadTimeout waits at most timeout for data. It returns 0, nil when
	// nothing arrived.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	SetBaudrate(rate int) error
	// Flush discards unread input.
	Flush() error
	Close() error
}

type opener func(Config) (Line, error)

// Device owns one serial line. It is not safe for concurrent use; the
// command engine serializes all access.
type Device struct {
	cfg    Config
	open   opener
	line   Line
	baud   int
	logger zerolog.Logger
}

// New resolves the device kind into its backend. The line is not opened.
func New(cfg Config, logger zerolog.Logger) (*Device, error) {
	if cfg.Path == "" {
		return nil, errors.New("device: path required")
	}
	if cfg.Baudrate <= 0 {
		return nil, errors.New("device: baudrate must be > 0")
	}

	var open opener
	switch cfg.Kind {
	case KindUART:
		open = openUART
	case KindRS485:
		open = openRS485
	default:
		return nil, fmt.Errorf("device: unsupported kind %v", cfg.Kind)
	}
	return newDevice(cfg, open, logger), nil
}

// NewWithLine wraps an already open line. The device starts open.
func NewWithLine(cfg Config, line Line, logger zerolog.Logger) *Device {
	d := newDevice(cfg, func(Config) (Line, error) { return line, nil }, logger)
	d.line = line
	d.baud = cfg.Baudrate
	return d
}

func newDevice(cfg Config, open opener, logger zerolog.Logger) *Device {
	if cfg.ReadSlice <= 0 {
		cfg.ReadSlice = DefaultReadSlice
	}
	if cfg.Parity == "" {
		cfg.Parity = "N"
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	return &Device{
		cfg:    cfg,
		open:   open,
		logger: logger.With().Str("device", cfg.Path).Str("kind", cfg.Kind.String()).Logger(),
	}
}

// Path returns the configured device path.
func (d *Device) Path() string { return d.cfg.Path }

// Baudrate returns the current line speed.
func (d *Device) Baudrate() int { return d.baud }

// IsOpen reports whether the line is held.
func (d *Device) IsOpen() bool { return d.line != nil }

// Open acquires the serial line at the configured baud rate.
func (d *Device) Open() error {
	if d.line != nil {
		return nil
	}
	line, err := d.open(d.cfg)
	if err != nil {
		return &IOError{Op: "open", Path: d.cfg.Path, Err: err}
	}
	d.line = line
	d.baud = d.cfg.Baudrate
	d.logger.Info().Int("baudrate", d.baud).Msg("device opened")
	return nil
}

// Close releases the line. Closing a closed device is a no-op.
func (d *Device) Close() error {
	if d.line == nil {
		return nil
	}
	err := d.line.Close()
	d.line = nil
	if err != nil {
		return &IOError{Op: "close", Path: d.cfg.Path, Err: err}
	}
	return nil
}

// SetBaudrate changes the line speed for subsequent transfers.
func (d *Device) SetBaudrate(rate int) error {
	if d.line == nil {
		return ErrNotOpen
	}
	if rate <= 0 {
		return fmt.Errorf("device: invalid baudrate %d", rate)
	}
	if rate == d.baud {
		return nil
	}
	if err := d.line.SetBaudrate(rate); err != nil {
		return &IOError{Op: "baudrate", Path: d.cfg.Path, Err: err}
	}
	d.logger.Debug().Int("from", d.baud).Int("to", rate).Msg("baudrate changed")
	d.baud = rate
	return nil
}

// Flush discards pending input.
func (d *Device) Flush() error {
	if d.line == nil {
		return ErrNotOpen
	}
	if err := d.line.Flush(); err != nil {
		return &IOError{Op: "flush", Path: d.cfg.Path, Err: err}
	}
	return nil
}

// Write sends exactly p.
func (d *Device) Write(p []byte) error {
	if d.line == nil {
		return ErrNotOpen
	}
	n, err := d.line.Write(p)
	if err != nil {
		return &IOError{Op: "write", Path: d.cfg.Path, Err: err}
	}
	if n != len(p) {
		return &IOError{Op: "write", Path: d.cfg.Path, Err: io.ErrShortWrite}
	}
	return nil
}

// Read blocks until expectedLen bytes are in buf or timeout elapses.
// On expiry it returns the bytes read so far with ErrTimeout.
func (d *Device) Read(buf []byte, expectedLen int, timeout time.Duration) (int, error) {
	if d.line == nil {
		return 0, ErrNotOpen
	}
	if expectedLen > len(buf) {
		expectedLen = len(buf)
	}

	deadline := time.Now().Add(timeout)
	n := 0
	for n < expectedLen {
		wait := time.Until(deadline)
		if wait <= 0 {
			return n, ErrTimeout
		}
		if wait > d.cfg.ReadSlice {
			wait = d.cfg.ReadSlice
		}
		k, err := d.line.ReadTimeout(buf[n:expectedLen], wait)
		n += k
		if err != nil {
			return n, &IOError{Op: "read", Path: d.cfg.Path, Err: err}
		}
	}
	return n, nil
}
