// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/cache"
	"github.com/tamzrod/rackmond/internal/engine"
	"github.com/tamzrod/rackmond/internal/frame"
)

// Commander is the part of the engine a poller uses.
// Pollers share one engine per bus and never own it.
type Commander interface {
	Command(req frame.Frame, opts engine.Options) (frame.Frame, error)
	Ignored(addr uint8) bool
}

// Config is the runtime config of one poll group.
type Config struct {
	ID         string
	Interval   time.Duration
	Addresses  []uint8
	Reads      []ReadBlock
	Retries    int
	RetryDelay time.Duration
	Options    engine.Options
}

// Poller reads a fixed set of blocks from a fixed set of devices.
type Poller struct {
	cfg    Config
	cmd    Commander
	store  *cache.Store
	logger zerolog.Logger
}

// New creates a poller with immutable config.
func New(cfg Config, cmd Commander, store *cache.Store, logger zerolog.Logger) (*Poller, error) {
	if cfg.ID == "" {
		return nil, errors.New("poller: id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("poller: at least one address required")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if cfg.Retries < 0 {
		return nil, errors.New("poller: retries must be >= 0")
	}
	if cmd == nil {
		return nil, errors.New("poller: commander required")
	}
	if store == nil {
		return nil, errors.New("poller: store required")
	}
	return &Poller{
		cfg:    cfg,
		cmd:    cmd,
		store:  store,
		logger: logger.With().Str("poll", cfg.ID).Logger(),
	}, nil
}

// ID returns the poll group id.
func (p *Poller) ID() string { return p.cfg.ID }

// PollOnce performs exactly one poll cycle over every address.
// Blocks succeed or fail independently: a good block refreshes the cache,
// a failed one leaves its entries stale and marks the device in error.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		Poll: p.cfg.ID,
		At:   time.Now(),
	}

	for _, addr := range p.cfg.Addresses {
		if p.cmd.Ignored(addr) {
			res.Skipped = append(res.Skipped, addr)
			p.store.Record(addr, engine.ErrIgnored, res.At)
			continue
		}

		var devErr error
		for _, rb := range p.cfg.Reads {
			br := p.readBlock(addr, rb)
			if br.Err != nil {
				res.Failed++
				if devErr == nil {
					devErr = br.Err
				}
				p.logger.Warn().
					Uint8("addr", addr).
					Uint8("fc", rb.FC).
					Uint16("address", rb.Address).
					Int("attempts", br.Attempts).
					Err(br.Err).
					Msg("read failed")
			}
			res.Blocks = append(res.Blocks, br)
		}
		p.store.Record(addr, devErr, time.Now())
	}

	return res
}

// readBlock issues one block read with retries on transient errors.
func (p *Poller) readBlock(addr uint8, rb ReadBlock) BlockResult {
	br := BlockResult{Addr: addr, FC: rb.FC, Address: rb.Address, Quantity: rb.Quantity}

	req, err := frame.Read(addr, rb.FC, rb.Address, rb.Quantity)
	if err != nil {
		br.Err = err
		return br
	}

	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 && p.cfg.RetryDelay > 0 {
			time.Sleep(p.cfg.RetryDelay)
		}
		br.Attempts++

		var resp frame.Frame
		resp, err = p.cmd.Command(req, p.cfg.Options)
		if err == nil {
			err = p.commit(addr, rb, resp, &br)
		}
		if err == nil || !engine.Classify(err).Transient() {
			break
		}
	}
	br.Err = err
	return br
}

// commit decodes resp into br and writes the values to the cache.
// Bits are stored as 0 or 1 per coil.
func (p *Poller) commit(addr uint8, rb ReadBlock, resp frame.Frame, br *BlockResult) error {
	at := time.Now()
	switch rb.FC {
	case 1, 2:
		bits, err := frame.Bits(resp, int(rb.Quantity))
		if err != nil {
			return err
		}
		br.Bits = bits
		values := make([]uint16, len(bits))
		for i, b := range bits {
			if b {
				values[i] = 1
			}
		}
		p.store.UpdateBlock(addr, rb.FC, rb.Address, values, at)
	default:
		regs, err := frame.Registers(resp)
		if err != nil {
			return err
		}
		br.Registers = regs
		p.store.UpdateBlock(addr, rb.FC, rb.Address, regs, at)
	}
	return nil
}
