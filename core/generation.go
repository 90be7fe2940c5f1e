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

package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/internal/workerpool"
)

// GenerationWindow carries the address sets of the last two processed
// blocks. It is only modified between blocks.
type GenerationWindow struct {
	parent      *chain.AddressSet
	grandparent *chain.AddressSet
}

// Parent returns the set of the previous block, nil if unknown.
func (w *GenerationWindow) Parent() *chain.AddressSet { return w.parent }

// Grandparent returns the set of the block before the previous one, nil if
// unknown.
func (w *GenerationWindow) Grandparent() *chain.AddressSet { return w.grandparent }

// Advance shifts the window by one block: the parent becomes the
// grandparent and current becomes the parent.
func (w *GenerationWindow) Advance(current *chain.AddressSet) {
	w.grandparent, w.parent = w.parent, current
}

// Context builds the execution context of the block owning current.
func (w *GenerationWindow) Context(current *chain.AddressSet, senders []common.Address, authorities [][]*common.Address) *chain.Context {
	return &chain.Context{
		Grandparent: w.grandparent,
		Parent:      w.parent,
		Current:     current,
		Senders:     senders,
		Authorities: authorities,
	}
}

// SeedGenerationWindow rebuilds the window for a run whose first block is
// start, from the archived blocks start-2 and start-1, which are fetched and
// recovered concurrently. Genesis carries no transactions and is never part
// of the window.
func SeedGenerationWindow(archive BlockArchive, pool *workerpool.Pool, c *chain.Chain, start uint64) (*GenerationWindow, error) {
	var numbers []uint64
	for back := uint64(2); back >= 1; back-- {
		if start > back {
			numbers = append(numbers, start-back)
		}
	}
	var (
		sets = make([]*chain.AddressSet, len(numbers))
		errs = make([]error, len(numbers))
	)
	pool.Go(len(numbers), func(i int) error {
		number := numbers[i]
		block, err := archive.Get(number)
		if err != nil {
			errs[i] = blockError(number, StageFetch, fmt.Errorf("%w: %v", ErrArchive, err))
			return errs[i]
		}
		rules := c.Rules(number, block.Time())
		sets[i] = chain.BuildAddressSet(recoverBlock(pool, rules.Signer, block))
		return nil
	})
	w := new(GenerationWindow)
	for i, number := range numbers {
		// Report the lowest failing height, whichever task failed first.
		if errs[i] != nil {
			return nil, errs[i]
		}
		w.Advance(sets[i])
		log.Debug("Seeded generation window", "number", number, "addresses", w.parent.Len())
	}
	return w, nil
}
