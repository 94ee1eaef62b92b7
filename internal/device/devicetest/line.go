// internal/device/devicetest/line.go

// Package devicetest provides a scriptable in-memory serial line.
package devicetest

import (
	"errors"
	"sync"
	"time"
)

// Op is one recorded line operation.
type Op struct {
	Write bool
	Data  []byte
}

// Line is an in-memory device.Line. Respond is called for every write; the
// bytes it returns become readable, Chunk bytes per read.
type Line struct {
	Respond func(req []byte) []byte
	Chunk   int

	// WriteErr fails every write; ShortWrite accepts one byte less.
	WriteErr   error
	ShortWrite bool

	mu      sync.Mutex
	pending []byte
	notify  chan struct{}
	trace   []Op
	bauds   []int
	flushes int
	closed  bool
}

// New returns a line answering with respond.
func New(respond func(req []byte) []byte) *Line {
	return &Line{Respond: respond, notify: make(chan struct{}, 1)}
}

func (l *Line) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Feed makes b readable as if the remote end had sent it.
func (l *Line) Feed(b []byte) {
	l.mu.Lock()
	l.pending = append(l.pending, b...)
	l.mu.Unlock()
	l.signal()
}

func (l *Line) Write(p []byte) (int, error) {
	if l.WriteErr != nil {
		return 0, l.WriteErr
	}
	req := append([]byte(nil), p...)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, errors.New("devicetest: closed")
	}
	l.trace = append(l.trace, Op{Write: true, Data: req})
	l.mu.Unlock()

	if l.Respond != nil {
		if resp := l.Respond(req); len(resp) > 0 {
			l.Feed(resp)
		}
	}
	if l.ShortWrite && len(p) > 0 {
		return len(p) - 1, nil
	}
	return len(p), nil
}

func (l *Line) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return 0, errors.New("devicetest: closed")
		}
		if len(l.pending) > 0 {
			max := len(p)
			if l.Chunk > 0 && l.Chunk < max {
				max = l.Chunk
			}
			n := copy(p[:max], l.pending)
			l.pending = l.pending[n:]
			l.trace = append(l.trace, Op{Data: append([]byte(nil), p[:n]...)})
			more := len(l.pending) > 0
			l.mu.Unlock()
			if more {
				l.signal()
			}
			return n, nil
		}
		l.mu.Unlock()

		select {
		case <-l.notify:
		case <-timer.C:
			return 0, nil
		}
	}
}

func (l *Line) SetBaudrate(rate int) error {
	l.mu.Lock()
	l.bauds = append(l.bauds, rate)
	l.mu.Unlock()
	return nil
}

func (l *Line) Flush() error {
	l.mu.Lock()
	l.pending = nil
	l.flushes++
	l.mu.Unlock()
	return nil
}

func (l *Line) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

// Trace returns a copy of the recorded operations.
func (l *Line) Trace() []Op {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Op(nil), l.trace...)
}

// Writes returns the written frames in order.
func (l *Line) Writes() [][]byte {
	var out [][]byte
	for _, op := range l.Trace() {
		if op.Write {
			out = append(out, op.Data)
		}
	}
	return out
}

// Baudrates returns every speed the line was switched to.
func (l *Line) Baudrates() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.bauds...)
}

// Closed reports whether Close was called.
func (l *Line) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
