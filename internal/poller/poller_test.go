// internal/poller/poller_test.go
package poller

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/rackmond/internal/cache"
	"github.com/tamzrod/rackmond/internal/device"
	"github.com/tamzrod/rackmond/internal/engine"
	"github.com/tamzrod/rackmond/internal/frame"
	"github.com/tamzrod/rackmond/internal/status"
)

// fakeClient answers reads with register i = start+i and can be told to
// fail a number of times per address.
type fakeClient struct {
	mu      sync.Mutex
	ignored map[uint8]bool
	failFC  uint8
	fails   map[uint8]int // remaining transient failures per address
	failErr error
	calls   int
}

func (f *fakeClient) Ignored(addr uint8) bool { return f.ignored[addr] }

func (f *fakeClient) Command(req frame.Frame, _ engine.Options) (frame.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.failFC == req.Function {
		return frame.Frame{}, f.failErr
	}
	if f.fails[req.Addr] > 0 {
		f.fails[req.Addr]--
		return frame.Frame{}, device.ErrTimeout
	}

	start := binary.BigEndian.Uint16(req.Data[0:2])
	qty := binary.BigEndian.Uint16(req.Data[2:4])
	switch req.Function {
	case 1, 2:
		data := make([]byte, 1+(qty+7)/8)
		data[0] = byte((qty + 7) / 8)
		for i := 0; i < int(qty); i += 2 {
			data[1+i/8] |= 1 << (i % 8)
		}
		return frame.Frame{Addr: req.Addr, Function: req.Function, Data: data}, nil
	default:
		data := []byte{byte(2 * qty)}
		for i := uint16(0); i < qty; i++ {
			data = binary.BigEndian.AppendUint16(data, start+i)
		}
		return frame.Frame{Addr: req.Addr, Function: req.Function, Data: data}, nil
	}
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	return Config{
		ID:        "p1",
		Interval:  1 * time.Second,
		Addresses: []uint8{0xa4},
		Reads: []ReadBlock{
			{FC: 1, Address: 0, Quantity: 8},
			{FC: 3, Address: 100, Quantity: 10},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	store := cache.New()
	cases := map[string]func(*Config){
		"no id":        func(c *Config) { c.ID = "" },
		"no interval":  func(c *Config) { c.Interval = 0 },
		"no addresses": func(c *Config) { c.Addresses = nil },
		"no reads":     func(c *Config) { c.Reads = nil },
		"neg retries":  func(c *Config) { c.Retries = -1 },
	}
	for name, mutate := range cases {
		c := testConfig()
		mutate(&c)
		if _, err := New(c, &fakeClient{}, store, zerolog.Nop()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestPollOnce_Success(t *testing.T) {
	store := cache.New()
	p, err := New(testConfig(), &fakeClient{}, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce()
	if res.Err() != nil {
		t.Fatalf("PollOnce err=%v", res.Err())
	}
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}

	e, ok := store.Query(0xa4, 105)
	if !ok || e.Value != 105 || e.Function != 3 {
		t.Fatalf("register 105=%+v ok=%v", e, ok)
	}
	c0, _ := store.Query(0xa4, 0)
	c1, _ := store.Query(0xa4, 1)
	if c0.Value != 1 || c1.Value != 0 {
		t.Fatalf("coils=%d,%d", c0.Value, c1.Value)
	}
	if st := store.Status(0xa4); st.Health != status.HealthOK {
		t.Fatalf("health=%d", st.Health)
	}
}

func TestPollOnce_FailureKeepsStaleEntries(t *testing.T) {
	store := cache.New()
	fc := &fakeClient{}
	p, err := New(testConfig(), fc, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	p.PollOnce()
	before, _ := store.Query(0xa4, 100)

	fc.failFC = 3
	fc.failErr = &frame.Error{Kind: frame.ErrException, Exception: &modbus.ModbusError{
		FunctionCode: 0x83, ExceptionCode: modbus.ExceptionCodeIllegalDataAddress,
	}}
	res := p.PollOnce()
	if res.Err() == nil || res.Failed != 1 {
		t.Fatalf("expected one failed block, got %+v", res)
	}

	after, ok := store.Query(0xa4, 100)
	if !ok || !after.At.Equal(before.At) {
		t.Fatalf("entry changed on failure: before=%+v after=%+v", before, after)
	}
	st := store.Status(0xa4)
	if st.Health != status.HealthError || st.LastErrorCode != status.CodeExceptionBase|0x02 {
		t.Fatalf("status=%+v", st)
	}
}

func TestPollOnce_RetriesTransient(t *testing.T) {
	store := cache.New()
	fc := &fakeClient{fails: map[uint8]int{0xa4: 2}}
	c := testConfig()
	c.Reads = c.Reads[1:]
	c.Retries = 2

	p, err := New(c, fc, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	res := p.PollOnce()
	if res.Err() != nil {
		t.Fatalf("PollOnce err=%v", res.Err())
	}
	if res.Blocks[0].Attempts != 3 {
		t.Fatalf("attempts=%d want=3", res.Blocks[0].Attempts)
	}
}

func TestPollOnce_ExceptionNotRetried(t *testing.T) {
	fc := &fakeClient{failFC: 3, failErr: &frame.Error{Kind: frame.ErrException, Exception: &modbus.ModbusError{
		FunctionCode: 0x83, ExceptionCode: modbus.ExceptionCodeServerDeviceBusy,
	}}}
	c := testConfig()
	c.Reads = c.Reads[1:]
	c.Retries = 5

	p, err := New(c, fc, cache.New(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	res := p.PollOnce()
	if fc.callCount() != 1 || res.Blocks[0].Attempts != 1 {
		t.Fatalf("calls=%d attempts=%d", fc.callCount(), res.Blocks[0].Attempts)
	}
}

func TestPollOnce_SkipsIgnored(t *testing.T) {
	store := cache.New()
	fc := &fakeClient{ignored: map[uint8]bool{0xa5: true}}
	c := testConfig()
	c.Addresses = []uint8{0xa4, 0xa5}

	p, err := New(c, fc, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	res := p.PollOnce()
	if len(res.Skipped) != 1 || res.Skipped[0] != 0xa5 {
		t.Fatalf("skipped=%v", res.Skipped)
	}
	if fc.callCount() != 2 {
		t.Fatalf("calls=%d want=2", fc.callCount())
	}
	if st := store.Status(0xa5); st.Health != status.HealthDisabled {
		t.Fatalf("ignored health=%d", st.Health)
	}
}

func TestPollerThread_ReportsFailures(t *testing.T) {
	fc := &fakeClient{failFC: 3, failErr: errors.New("EIO")}
	c := testConfig()
	c.Interval = time.Millisecond

	p, err := New(c, fc, cache.New(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	th := p.Thread()
	if th.Name() != "p1" || th.Interval() != time.Millisecond {
		t.Fatalf("thread name=%q interval=%v", th.Name(), th.Interval())
	}
	if err := th.fn(); err == nil {
		t.Fatalf("expected failure from poll callback")
	}
}

func TestPollOnce_SharedAddressStatusNotLost(t *testing.T) {
	store := cache.New()
	fc := &fakeClient{failFC: 3, failErr: errors.New("EIO")}

	newPoller := func(id string, reg uint16) *Poller {
		c := testConfig()
		c.ID = id
		c.Reads = []ReadBlock{{FC: 3, Address: reg, Quantity: 4}}
		p, err := New(c, fc, store, zerolog.Nop())
		if err != nil {
			t.Fatalf("New(%s) err=%v", id, err)
		}
		return p
	}
	pollers := []*Poller{newPoller("low", 0), newPoller("high", 10)}

	const rounds = 500
	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *Poller) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				p.PollOnce()
			}
		}(p)
	}
	wg.Wait()

	if got := store.Status(0xa4).ConsecutiveFailures; got != 2*rounds {
		t.Fatalf("ConsecutiveFailures=%d want=%d", got, 2*rounds)
	}
}
