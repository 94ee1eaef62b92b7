// cmd/rackmond/dump.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/tamzrod/rackmond/internal/cache"
	"github.com/tamzrod/rackmond/internal/engine"
	"github.com/tamzrod/rackmond/internal/status"
)

var (
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	idleColor  = color.New(color.FgYellow)
	titleColor = color.New(color.Bold)
)

func dumpLoop(ctx context.Context, w io.Writer, store *cache.Store, engines []*engine.Engine, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dump(w, store, engines, time.Now(), 3*every)
		}
	}
}

// dump prints every device status and cached register. Devices whose last
// success is older than maxAge show as stale.
func dump(w io.Writer, store *cache.Store, engines []*engine.Engine, now time.Time, maxAge time.Duration) {
	for _, e := range engines {
		st := e.Stats()
		titleColor.Fprintf(w, "bus %s", e.Name())
		fmt.Fprintf(w, " commands=%d timeouts=%d frame=%d exceptions=%d transport=%d\n",
			st.Commands, st.Timeouts, st.FrameErrors, st.Exceptions, st.TransportErrors)
	}

	for _, addr := range store.Addresses() {
		snap := store.Status(addr)
		health := snap.HealthAt(now, maxAge)

		c := idleColor
		switch health {
		case status.HealthOK:
			c = okColor
		case status.HealthError:
			c = errColor
		}
		c.Fprintf(w, "0x%02x %-8s", addr, status.HealthName(health))
		fmt.Fprintf(w, " code=0x%04x failures=%d\n", snap.LastErrorCode, snap.ConsecutiveFailures)

		for _, e := range store.Device(addr) {
			fmt.Fprintf(w, "  fc%d %5d = 0x%04x (%s ago)\n",
				e.Function, e.Register, e.Value, now.Sub(e.At).Truncate(time.Millisecond))
		}
	}
}
