// internal/cache/cache.go
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/tamzrod/rackmond/internal/status"
)

// Entry is the last value read from one register of one device.
// Entries are immutable once stored.
type Entry struct {
	Addr     uint8
	Register uint16
	Function uint8
	Value    uint16
	At       time.Time
}

type key struct {
	addr uint8
	reg  uint16
}

// Store holds the latest readings per device and register.
//
// Writers are poll callbacks; readers are any goroutine. Each entry is
// replaced as a whole, so a reader sees either the old or the new entry,
// never a mix. There is no store-wide lock: distinct entries update
// independently.
type Store struct {
	entries sync.Map // key -> *Entry
	devices sync.Map // uint8 -> *status.Snapshot
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Update overwrites one entry.
func (s *Store) Update(addr uint8, reg uint16, value uint16, at time.Time) {
	s.put(Entry{Addr: addr, Register: reg, Value: value, At: at})
}

// UpdateBlock stores consecutive registers from start, all stamped at.
func (s *Store) UpdateBlock(addr uint8, fc uint8, start uint16, values []uint16, at time.Time) {
	for i, v := range values {
		s.put(Entry{Addr: addr, Register: start + uint16(i), Function: fc, Value: v, At: at})
	}
}

func (s *Store) put(e Entry) {
	s.entries.Store(key{e.Addr, e.Register}, &e)
}

// Query returns the stored entry and false when the register was never
// read successfully.
func (s *Store) Query(addr uint8, reg uint16) (Entry, bool) {
	v, ok := s.entries.Load(key{addr, reg})
	if !ok {
		return Entry{}, false
	}
	return *v.(*Entry), true
}

// Device returns every entry of addr ordered by register.
func (s *Store) Device(addr uint8) []Entry {
	var out []Entry
	s.entries.Range(func(k, v any) bool {
		if k.(key).addr == addr {
			out = append(out, *v.(*Entry))
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Register < out[j].Register })
	return out
}

// Addresses returns every device with entries or status, ascending.
func (s *Store) Addresses() []uint8 {
	seen := map[uint8]struct{}{}
	s.entries.Range(func(k, _ any) bool {
		seen[k.(key).addr] = struct{}{}
		return true
	})
	s.devices.Range(func(k, _ any) bool {
		seen[k.(uint8)] = struct{}{}
		return true
	})

	out := make([]uint8, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Status returns the device status, HealthUnknown if never polled.
func (s *Store) Status(addr uint8) status.Snapshot {
	v, ok := s.devices.Load(addr)
	if !ok {
		return status.Snapshot{Health: status.HealthUnknown}
	}
	return *v.(*status.Snapshot)
}

// SetStatus replaces the device status.
func (s *Store) SetStatus(addr uint8, snap status.Snapshot) {
	s.devices.Store(addr, &snap)
}

// Record folds one poll attempt into the device status. Several poll
// groups may share an address, so the fold retries until it swaps in on
// top of the snapshot it was computed from.
func (s *Store) Record(addr uint8, err error, at time.Time) status.Snapshot {
	for {
		v, ok := s.devices.Load(addr)
		if !ok {
			next := status.Snapshot{Health: status.HealthUnknown}.Next(err, at)
			if _, loaded := s.devices.LoadOrStore(addr, &next); !loaded {
				return next
			}
			continue
		}

		prev := v.(*status.Snapshot)
		next := prev.Next(err, at)
		if s.devices.CompareAndSwap(addr, prev, &next) {
			return next
		}
	}
}
