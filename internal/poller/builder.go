// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/cache"
	cfg "github.com/tamzrod/rackmond/internal/config"
	"github.com/tamzrod/rackmond/internal/engine"
)

// Build constructs one stopped Thread per poll group of bus.
// Every thread shares cmd; none of them owns it.
// bus must already be validated and normalized.
func Build(bus cfg.BusConfig, cmd Commander, store *cache.Store, logger zerolog.Logger) ([]*Thread, error) {
	logger = logger.With().Str("bus", bus.ID).Logger()

	threads := make([]*Thread, 0, len(bus.Polls))
	for _, pc := range bus.Polls {
		reads := make([]ReadBlock, 0, len(pc.Reads))
		for _, r := range pc.Reads {
			reads = append(reads, ReadBlock{
				FC:       r.FC,
				Address:  r.Address,
				Quantity: r.Quantity,
			})
		}

		p, err := New(
			Config{
				ID:         pc.ID,
				Interval:   time.Duration(pc.IntervalMs) * time.Millisecond,
				Addresses:  pc.Addresses,
				Reads:      reads,
				Retries:    pc.Retries,
				RetryDelay: time.Duration(pc.RetryDelayMs) * time.Millisecond,
				Options: engine.Options{
					Baudrate:   pc.Baudrate,
					SettleTime: time.Duration(pc.SettleMs) * time.Millisecond,
				},
			},
			cmd,
			store,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("bus %q poll %q: %w", bus.ID, pc.ID, err)
		}
		threads = append(threads, p.Thread())
	}
	return threads, nil
}
