// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/frame"
)

const (
	minSlaveAddr = 1
	maxSlaveAddr = 247
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if len(cfg.Rackmon.Buses) == 0 {
		return fmt.Errorf("no buses defined")
	}

	busIDs := make(map[string]struct{})
	paths := make(map[string]string)

	// The cache is keyed by slave address, so an address belongs to one bus.
	// key = slave address, value = bus id
	addrOwner := make(map[uint8]string)

	for _, b := range cfg.Rackmon.Buses {
		if b.ID == "" {
			return fmt.Errorf("bus with device %q: id is required", b.Device)
		}
		if _, dup := busIDs[b.ID]; dup {
			return fmt.Errorf("bus %q: duplicate id", b.ID)
		}
		busIDs[b.ID] = struct{}{}

		if err := validateBus(b); err != nil {
			return err
		}

		if prev, dup := paths[b.Device]; dup {
			return fmt.Errorf("bus %q: device %s already used by bus %q", b.ID, b.Device, prev)
		}
		paths[b.Device] = b.ID

		for _, p := range b.Polls {
			for _, a := range p.Addresses {
				if prev, taken := addrOwner[a]; taken && prev != b.ID {
					return fmt.Errorf("bus %q poll %q: address %d already polled on bus %q", b.ID, p.ID, a, prev)
				}
				addrOwner[a] = b.ID
			}
		}
	}
	return nil
}

func validateBus(b BusConfig) error {
	if b.Device == "" {
		return fmt.Errorf("bus %q: device is required", b.ID)
	}
	if _, err := device.ParseKind(b.Type); err != nil {
		return fmt.Errorf("bus %q: %w", b.ID, err)
	}
	switch strings.ToUpper(b.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("bus %q: parity must be N, E or O, got %q", b.ID, b.Parity)
	}
	if b.Baudrate < 0 {
		return fmt.Errorf("bus %q: baudrate must be >= 0", b.ID)
	}
	if b.StopBits < 0 || b.StopBits > 2 {
		return fmt.Errorf("bus %q: stop_bits must be 1 or 2", b.ID)
	}
	if b.TimeoutMs < 0 || b.MinDelayMs < 0 {
		return fmt.Errorf("bus %q: timeout_ms and min_delay_ms must be >= 0", b.ID)
	}
	for _, a := range b.IgnoredAddresses {
		if a < minSlaveAddr || a > maxSlaveAddr {
			return fmt.Errorf("bus %q: ignored address %d out of range %d-%d", b.ID, a, minSlaveAddr, maxSlaveAddr)
		}
	}
	if len(b.Polls) == 0 {
		return fmt.Errorf("bus %q: at least one poll is required", b.ID)
	}

	pollIDs := make(map[string]struct{})
	for _, p := range b.Polls {
		if p.ID == "" {
			return fmt.Errorf("bus %q: poll id is required", b.ID)
		}
		if _, dup := pollIDs[p.ID]; dup {
			return fmt.Errorf("bus %q: duplicate poll id %q", b.ID, p.ID)
		}
		pollIDs[p.ID] = struct{}{}

		if err := validatePoll(p); err != nil {
			return fmt.Errorf("bus %q poll %q: %w", b.ID, p.ID, err)
		}
	}

	return validateOverlap(b)
}

func validatePoll(p PollConfig) error {
	if p.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be > 0")
	}
	if p.Retries < 0 || p.RetryDelayMs < 0 || p.SettleMs < 0 || p.Baudrate < 0 {
		return fmt.Errorf("retries, retry_delay_ms, settle_ms and baudrate must be >= 0")
	}
	if len(p.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	seen := make(map[uint8]struct{})
	for _, a := range p.Addresses {
		if a < minSlaveAddr || a > maxSlaveAddr {
			return fmt.Errorf("address %d out of range %d-%d", a, minSlaveAddr, maxSlaveAddr)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("address %d listed twice", a)
		}
		seen[a] = struct{}{}
	}

	if len(p.Reads) == 0 {
		return fmt.Errorf("at least one read is required")
	}
	for _, r := range p.Reads {
		var max uint16
		switch r.FC {
		case 1, 2:
			max = frame.MaxReadBits
		case 3, 4:
			max = frame.MaxReadRegisters
		default:
			return fmt.Errorf("read fc=%d: unsupported function code", r.FC)
		}
		if r.Quantity == 0 || r.Quantity > max {
			return fmt.Errorf("read fc=%d address=%d: quantity must be 1-%d", r.FC, r.Address, max)
		}
		if uint32(r.Address)+uint32(r.Quantity) > 0x10000 {
			return fmt.Errorf("read fc=%d address=%d: range exceeds register space", r.FC, r.Address)
		}
	}
	return nil
}

// validateOverlap rejects two reads landing on the same device register.
// The cache is keyed by address and register only, so function codes
// share one space.
func validateOverlap(b BusConfig) error {
	type span struct {
		start uint32
		end   uint32
		poll  string
		fc    uint8
	}

	// key = slave address
	spans := make(map[uint8][]span)

	for _, p := range b.Polls {
		for _, a := range p.Addresses {
			for _, r := range p.Reads {
				start := uint32(r.Address)
				end := start + uint32(r.Quantity) - 1

				for _, s := range spans[a] {
					// overlap check (inclusive)
					if !(end < s.start || start > s.end) {
						return fmt.Errorf(
							"bus %q: register overlap on address %d: poll=%s fc=%d range=%d-%d overlaps with poll=%s fc=%d range=%d-%d",
							b.ID,
							a,
							p.ID,
							r.FC,
							start,
							end,
							s.poll,
							s.fc,
							s.start,
							s.end,
						)
					}
				}

				spans[a] = append(spans[a], span{
					start: start,
					end:   end,
					poll:  p.ID,
					fc:    r.FC,
				})
			}
		}
	}
	return nil
}
