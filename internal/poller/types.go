// internal/poller/types.go
package poller

import "time"

// ReadBlock describes one Modbus read geometry.
// Geometry only: no semantics.
type ReadBlock struct {
	FC       uint8
	Address  uint16
	Quantity uint16
}

// BlockResult is the raw result of a single read on one device.
type BlockResult struct {
	Addr     uint8
	FC       uint8
	Address  uint16
	Quantity uint16

	// Exactly one of these is used depending on FC.
	Bits      []bool   // FC 1,2
	Registers []uint16 // FC 3,4

	Attempts int
	Err      error
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Poll string
	At   time.Time

	Blocks []BlockResult
	// Skipped lists ignored addresses that were not polled.
	Skipped []uint8
	// Failed counts blocks whose every attempt failed.
	Failed int
}

// Err returns the first block error, or nil when every block succeeded.
func (r PollResult) Err() error {
	for _, b := range r.Blocks {
		if b.Err != nil {
			return b.Err
		}
	}
	return nil
}
