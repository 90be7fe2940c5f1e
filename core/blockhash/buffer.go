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

// Package blockhash implements the circular buffer of recent finalized block
// hashes served to the BLOCKHASH opcode.
package blockhash

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Size is the number of hashes kept, matching the BLOCKHASH lookback.
const Size = 256

// HeaderReader reads canonical headers by number.
type HeaderReader interface {
	ReadCanonicalHeader(number uint64) (*types.Header, error)
}

// Buffer holds the hashes of the last Size finalized blocks. Writes must be
// contiguous: after Set(n) the next write is Set(n+1).
type Buffer struct {
	mu     sync.RWMutex
	hashes [Size]common.Hash
	next   uint64 // number of the next block to be set
	first  uint64 // lowest number ever set
}

// New creates an empty buffer expecting first as its first write.
func New(first uint64) *Buffer {
	return &Buffer{next: first, first: first}
}

// Init creates a buffer expecting next as its first write, pre-filled with
// the canonical hashes of the up to Size blocks before it.
func Init(reader HeaderReader, next uint64) (*Buffer, error) {
	start := uint64(0)
	if next > Size {
		start = next - Size
	}
	b := New(start)
	for n := start; n < next; n++ {
		header, err := reader.ReadCanonicalHeader(n)
		if err != nil {
			return nil, fmt.Errorf("block hash buffer init at %d: %w", n, err)
		}
		if err := b.Set(n, header.Hash()); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Set records the hash of block number.
func (b *Buffer) Set(number uint64, hash common.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if number != b.next {
		return fmt.Errorf("non-contiguous block hash: have %d, want %d", number, b.next)
	}
	b.hashes[number%Size] = hash
	b.next++
	return nil
}

// Get returns the hash of block number, or the zero hash when it is not
// among the last Size entries.
func (b *Buffer) Get(number uint64) common.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if number >= b.next || number < b.first || b.next-number > Size {
		return common.Hash{}
	}
	return b.hashes[number%Size]
}

// N returns the number of the next block to be set.
func (b *Buffer) N() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.next
}
