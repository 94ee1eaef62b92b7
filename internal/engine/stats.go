// internal/engine/stats.go
package engine

import "go.uber.org/atomic"

// Stats is a point in time copy of the engine counters.
type Stats struct {
	Commands        uint64
	Timeouts        uint64
	TransportErrors uint64
	FrameErrors     uint64
	Exceptions      uint64
	BaudChanges     uint64
	Ignored         uint64
}

type counters struct {
	commands        atomic.Uint64
	timeouts        atomic.Uint64
	transportErrors atomic.Uint64
	frameErrors     atomic.Uint64
	exceptions      atomic.Uint64
	baudChanges     atomic.Uint64
	ignored         atomic.Uint64
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Commands:        e.stats.commands.Load(),
		Timeouts:        e.stats.timeouts.Load(),
		TransportErrors: e.stats.transportErrors.Load(),
		FrameErrors:     e.stats.frameErrors.Load(),
		Exceptions:      e.stats.exceptions.Load(),
		BaudChanges:     e.stats.baudChanges.Load(),
		Ignored:         e.stats.ignored.Load(),
	}
}
