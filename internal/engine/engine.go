// internal/engine/engine.go
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/frame"
)

// Config holds the bus-wide defaults. Immutable after New.
type Config struct {
	Name     string
	Baudrate int
	Timeout  time.Duration
	// MinDelay is the quiet time enforced between the end of one exchange
	// and the start of the next.
	MinDelay time.Duration
	Ignored  []uint8
}

// Options override the defaults for one command. Zero values mean default.
type Options struct {
	Baudrate   int
	Timeout    time.Duration
	SettleTime time.Duration
	// ResponseLen overrides the expected response ADU size for function
	// codes whose length the codec cannot derive.
	ResponseLen int
}

// Engine runs request/response exchanges on one physical bus.
// It is the only owner of its Device; at most one exchange is in flight.
// Waiters on the bus lock are served in unspecified order.
type Engine struct {
	mu       sync.Mutex // bus lock: held for write+read+settle
	dev      *device.Device
	lastDone time.Time

	cfg     Config
	ignored *AddressSet
	stats   counters
	logger  zerolog.Logger
}

// New creates an engine owning dev.
func New(dev *device.Device, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if dev == nil {
		return nil, errors.New("engine: device required")
	}
	if cfg.Baudrate <= 0 {
		return nil, errors.New("engine: baudrate must be > 0")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("engine: timeout must be > 0")
	}
	e := &Engine{
		dev:     dev,
		cfg:     cfg,
		ignored: NewAddressSet(cfg.Ignored...),
		logger:  logger.With().Str("bus", cfg.Name).Logger(),
	}
	return e, nil
}

// Name returns the bus name.
func (e *Engine) Name() string { return e.cfg.Name }

// Ignore excludes addr from commands.
func (e *Engine) Ignore(addr uint8) { e.ignored.Add(addr) }

// Unignore re-enables addr.
func (e *Engine) Unignore(addr uint8) { e.ignored.Remove(addr) }

// Ignored reports whether addr is excluded.
func (e *Engine) Ignored(addr uint8) bool { return e.ignored.Contains(addr) }

// Command performs one exchange: req is encoded, written and the response
// read and decoded. Requests to address 0 are broadcast and return an empty
// frame. Errors from the device and codec are returned unchanged; no
// retries are made.
func (e *Engine) Command(req frame.Frame, opts Options) (frame.Frame, error) {
	if e.ignored.Contains(req.Addr) {
		e.stats.ignored.Inc()
		return frame.Frame{}, ignoredErr(req.Addr)
	}

	var out, in frame.Message
	if err := frame.Encode(&out, req); err != nil {
		return frame.Frame{}, err
	}

	expect := opts.ResponseLen
	if expect == 0 {
		expect = frame.ResponseLen(req)
	}
	if err := e.exchange(&out, &in, expect, opts); err != nil {
		return frame.Frame{}, err
	}
	if req.Addr == 0 {
		return frame.Frame{}, nil
	}

	resp, err := frame.DecodeResponse(&in, req)
	if err != nil {
		var fe *frame.Error
		if errors.As(err, &fe) && fe.Kind == frame.ErrException {
			e.stats.exceptions.Inc()
		} else {
			e.stats.frameErrors.Inc()
		}
		e.logger.Debug().Uint8("addr", req.Addr).Err(err).Msg("bad response")
		return frame.Frame{}, err
	}
	return resp, nil
}

// exchange holds the bus for write, read and settle. expect == 0 reads
// until the timeout and accepts whatever arrived.
func (e *Engine) exchange(out, in *frame.Message, expect int, opts Options) error {
	baud := opts.Baudrate
	if baud == 0 {
		baud = e.cfg.Baudrate
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = e.cfg.Timeout
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() { e.lastDone = time.Now() }()

	e.stats.commands.Inc()

	if e.cfg.MinDelay > 0 {
		if wait := e.cfg.MinDelay - time.Since(e.lastDone); wait > 0 {
			time.Sleep(wait)
		}
	}

	if e.dev.Baudrate() != baud {
		if err := e.dev.SetBaudrate(baud); err != nil {
			e.stats.transportErrors.Inc()
			return err
		}
		e.stats.baudChanges.Inc()
	}
	if err := e.dev.Flush(); err != nil {
		e.stats.transportErrors.Inc()
		return err
	}

	e.logger.Debug().Hex("tx", out.Bytes()).Int("baudrate", baud).Msg("request")
	if err := e.dev.Write(out.Bytes()); err != nil {
		e.stats.transportErrors.Inc()
		return err
	}

	var err error
	if out.Addr != 0 {
		err = e.read(in, expect, timeout)
		if err == nil {
			e.logger.Debug().Hex("rx", in.Bytes()).Msg("response")
		}
	}

	if opts.SettleTime > 0 {
		time.Sleep(opts.SettleTime)
	}
	return err
}

// read fetches a response in two steps: an exception sized head, then the
// rest when the head is not an exception.
func (e *Engine) read(in *frame.Message, expect int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	want := expect
	if want == 0 {
		want = frame.MaxADUSize
	}
	head := frame.ExceptionSize
	if want < head {
		head = want
	}

	n, err := e.dev.Read(in.Raw[:], head, timeout)
	if err == nil && n >= 2 && in.Raw[1]&0x80 == 0 && n < want {
		var k int
		k, err = e.dev.Read(in.Raw[n:], want-n, time.Until(deadline))
		n += k
	}
	in.Len = n
	if n > 0 {
		in.Addr = in.Raw[0]
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, device.ErrTimeout):
		if n == 0 {
			e.stats.timeouts.Inc()
			return err
		}
		if expect == 0 && n >= frame.MinADUSize {
			return nil
		}
		e.stats.frameErrors.Inc()
		return &frame.Error{Kind: frame.ErrShort, Len: n}
	default:
		e.stats.transportErrors.Inc()
		return err
	}
}

// Close releases the device. No commands may follow.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Close()
}
