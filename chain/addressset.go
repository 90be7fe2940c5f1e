// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package chain

import (
	"bytes"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
)

// AddressSet is the set of accounts a block touched as sender or as
// delegation authority. It has a single writer while the block is being
// prepared and is read-only afterwards.
type AddressSet struct {
	set mapset.Set[common.Address]
}

// NewAddressSet creates a set holding the given addresses.
func NewAddressSet(addrs ...common.Address) *AddressSet {
	return &AddressSet{set: mapset.NewThreadUnsafeSet[common.Address](addrs...)}
}

// BuildAddressSet collects every recovered sender and authority of a block.
// Entries that failed recovery are nil and skipped.
func BuildAddressSet(senders []*common.Address, authorities [][]*common.Address) *AddressSet {
	s := NewAddressSet()
	for _, sender := range senders {
		if sender != nil {
			s.Add(*sender)
		}
	}
	for _, auths := range authorities {
		for _, auth := range auths {
			if auth != nil {
				s.Add(*auth)
			}
		}
	}
	return s
}

// Add inserts an address.
func (s *AddressSet) Add(addr common.Address) {
	s.set.Add(addr)
}

// Contains reports whether addr is a member. A nil set contains nothing.
func (s *AddressSet) Contains(addr common.Address) bool {
	if s == nil {
		return false
	}
	return s.set.Contains(addr)
}

// Len returns the number of members.
func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return s.set.Cardinality()
}

// Equal reports whether both sets have the same members.
func (s *AddressSet) Equal(other *AddressSet) bool {
	if s == nil || other == nil {
		return s.Len() == other.Len()
	}
	return s.set.Equal(other.set)
}

// Clone returns an independent copy.
func (s *AddressSet) Clone() *AddressSet {
	return &AddressSet{set: s.set.Clone()}
}

// ToSlice returns the members in ascending byte order.
func (s *AddressSet) ToSlice() []common.Address {
	if s == nil {
		return nil
	}
	addrs := s.set.ToSlice()
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return addrs
}
