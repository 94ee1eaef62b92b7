// internal/poller/runner.go
package poller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// ErrRunning is returned by Start on a thread that is already running.
var ErrRunning = errors.New("poller: thread already running")

// Thread calls fn periodically on its own goroutine.
// The period runs from the end of one call to the start of the next.
// Errors and panics from fn are logged and the loop continues.
type Thread struct {
	name   string
	fn     func() error
	logger zerolog.Logger

	interval    *atomic.Duration
	invocations *atomic.Uint64
	running     *atomic.Bool

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewThread returns a stopped thread.
func NewThread(name string, fn func() error, period time.Duration, logger zerolog.Logger) *Thread {
	return &Thread{
		name:        name,
		fn:          fn,
		logger:      logger.With().Str("thread", name).Logger(),
		interval:    atomic.NewDuration(period),
		invocations: atomic.NewUint64(0),
		running:     atomic.NewBool(false),
	}
}

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

// Start spawns the loop goroutine.
func (t *Thread) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return ErrRunning
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.running.Store(true)

	go t.run(t.stop, t.done)
	return nil
}

// Stop interrupts the sleep and waits for the loop to exit. A call already
// in progress runs to completion first. No call of fn starts after Stop
// returns. Stop must not be called from fn.
func (t *Thread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
	t.running.Store(false)
}

// SetInterval changes the period from the next sleep on.
func (t *Thread) SetInterval(d time.Duration) { t.interval.Store(d) }

// Interval returns the current period.
func (t *Thread) Interval() time.Duration { return t.interval.Load() }

// Invocations returns how many times fn has been called.
func (t *Thread) Invocations() uint64 { return t.invocations.Load() }

// Running reports whether the loop goroutine is live.
func (t *Thread) Running() bool { return t.running.Load() }

func (t *Thread) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	t.logger.Debug().Dur("interval", t.interval.Load()).Msg("thread started")
	defer t.logger.Debug().Msg("thread stopped")

	for {
		timer := time.NewTimer(t.interval.Load())
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		// A zero period makes both cases ready; stop wins.
		select {
		case <-stop:
			return
		default:
		}

		t.invoke()
	}
}

func (t *Thread) invoke() {
	t.invocations.Inc()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Str("panic", fmt.Sprint(r)).Msg("callback panicked")
		}
	}()

	if err := t.fn(); err != nil {
		t.logger.Warn().Err(err).Msg("callback failed")
	}
}

// Thread binds PollOnce to a thread running at the configured interval.
func (p *Poller) Thread() *Thread {
	return NewThread(p.cfg.ID, func() error {
		res := p.PollOnce()
		if res.Failed > 0 {
			return fmt.Errorf("poll %s: %d of %d blocks failed: %w",
				p.cfg.ID, res.Failed, len(res.Blocks), res.Err())
		}
		return nil
	}, p.cfg.Interval, p.logger)
}
