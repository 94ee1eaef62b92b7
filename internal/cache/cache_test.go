// internal/cache/cache_test.go
package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/rackmond/internal/status"
)

func TestQuery_NotPresent(t *testing.T) {
	s := New()
	if _, ok := s.Query(0xa4, 0); ok {
		t.Fatalf("expected no entry")
	}
}

func TestUpdate_Overwrites(t *testing.T) {
	s := New()
	t0 := time.Unix(10, 0)
	s.Update(0xa4, 7, 100, t0)
	s.Update(0xa4, 7, 200, t0.Add(time.Second))

	e, ok := s.Query(0xa4, 7)
	if !ok {
		t.Fatalf("entry missing")
	}
	if e.Value != 200 || !e.At.Equal(t0.Add(time.Second)) || e.Addr != 0xa4 || e.Register != 7 {
		t.Fatalf("entry=%+v", e)
	}
}

func TestUpdateBlock_AndDevice(t *testing.T) {
	s := New()
	at := time.Unix(20, 0)
	s.UpdateBlock(0xa5, 3, 10, []uint16{1, 2, 3}, at)
	s.Update(0xa6, 0, 9, at)

	entries := s.Device(0xa5)
	if len(entries) != 3 {
		t.Fatalf("entries=%d want=3", len(entries))
	}
	for i, e := range entries {
		if e.Register != uint16(10+i) || e.Value != uint16(i+1) || e.Function != 3 {
			t.Fatalf("entry %d=%+v", i, e)
		}
	}

	addrs := s.Addresses()
	if len(addrs) != 2 || addrs[0] != 0xa5 || addrs[1] != 0xa6 {
		t.Fatalf("addresses=%v", addrs)
	}
}

// Each writer stores Value == low bits of At; readers must never see an
// entry whose fields disagree.
func TestUpdate_NoTornEntries(t *testing.T) {
	s := New()
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				v := uint16(i*4 + w)
				s.Update(1, 0, v, time.Unix(int64(v), 0))
			}
		}(w)
	}

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		e, ok := s.Query(1, 0)
		if !ok {
			continue
		}
		if uint16(e.At.Unix()) != e.Value {
			close(stop)
			wg.Wait()
			t.Fatalf("torn entry: %+v", e)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRecord_StatusStaleOnFailure(t *testing.T) {
	s := New()
	t0 := time.Unix(30, 0)

	if st := s.Status(0xa4); st.Health != status.HealthUnknown {
		t.Fatalf("initial health=%d", st.Health)
	}

	s.Update(0xa4, 0, 42, t0)
	s.Record(0xa4, nil, t0)
	snap := s.Record(0xa4, errors.New("timeout"), t0.Add(time.Second))

	if snap.Health != status.HealthError || snap.ConsecutiveFailures != 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
	// Cached value is kept, not cleared.
	e, ok := s.Query(0xa4, 0)
	if !ok || e.Value != 42 || !e.At.Equal(t0) {
		t.Fatalf("entry after failure=%+v ok=%v", e, ok)
	}
}

func TestRecord_ConcurrentFoldsNotLost(t *testing.T) {
	s := New()
	const (
		writers = 4
		each    = 1000
	)
	fail := errors.New("timeout")

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				s.Record(0xa4, fail, time.Now())
			}
		}()
	}
	wg.Wait()

	st := s.Status(0xa4)
	if st.ConsecutiveFailures != writers*each {
		t.Fatalf("ConsecutiveFailures=%d want=%d", st.ConsecutiveFailures, writers*each)
	}
	if st.Health != status.HealthError {
		t.Fatalf("health=%d", st.Health)
	}
}
