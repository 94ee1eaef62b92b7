// internal/engine/addrset.go
package engine

import "go.uber.org/atomic"

// AddressSet is a lock-free set of slave addresses.
type AddressSet struct {
	bits [256]atomic.Bool
}

// NewAddressSet returns a set holding addrs.
func NewAddressSet(addrs ...uint8) *AddressSet {
	s := &AddressSet{}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

func (s *AddressSet) Add(addr uint8)    { s.bits[addr].Store(true) }
func (s *AddressSet) Remove(addr uint8) { s.bits[addr].Store(false) }

// Contains reports whether addr is in the set.
func (s *AddressSet) Contains(addr uint8) bool { return s.bits[addr].Load() }

// List returns the members in ascending order.
func (s *AddressSet) List() []uint8 {
	var out []uint8
	for i := range s.bits {
		if s.bits[i].Load() {
			out = append(out, uint8(i))
		}
	}
	return out
}
