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
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/monadgo/execution/internal/workerpool"
)

// RecoverSenders recovers the signer of every transaction on the pool. A nil
// entry marks a transaction whose signature did not recover.
//
// Each task writes only its own slot, so no synchronisation is needed beyond
// waiting for the pool.
func RecoverSenders(pool *workerpool.Pool, signer types.Signer, txs types.Transactions) []*common.Address {
	senders := make([]*common.Address, len(txs))
	pool.ForEach(len(txs), func(i int) {
		if from, err := types.Sender(signer, txs[i]); err == nil {
			senders[i] = &from
		}
	})
	return senders
}

// RecoverAuthorities recovers the authority of every set-code authorization
// of every transaction. Transactions without authorizations get a nil list;
// authorizations that fail to recover get a nil entry.
func RecoverAuthorities(pool *workerpool.Pool, txs types.Transactions) [][]*common.Address {
	authorities := make([][]*common.Address, len(txs))
	pool.ForEach(len(txs), func(i int) {
		auths := txs[i].SetCodeAuthorizations()
		if len(auths) == 0 {
			return
		}
		list := make([]*common.Address, len(auths))
		for j := range auths {
			if addr, err := auths[j].Authority(); err == nil {
				list[j] = &addr
			}
		}
		authorities[i] = list
	})
	return authorities
}

// denseSenders converts recovered senders into a plain list, failing with
// ErrMissingSender on the first absent one.
func denseSenders(senders []*common.Address) ([]common.Address, error) {
	dense := make([]common.Address, len(senders))
	for i, sender := range senders {
		if sender == nil {
			return nil, fmt.Errorf("%w: transaction %d", ErrMissingSender, i)
		}
		dense[i] = *sender
	}
	return dense, nil
}

// recoverBlock runs sender and authority recovery for a block.
func recoverBlock(pool *workerpool.Pool, signer types.Signer, block *types.Block) ([]*common.Address, [][]*common.Address) {
	start := time.Now()
	txs := block.Transactions()
	senders := RecoverSenders(pool, signer, txs)
	authorities := RecoverAuthorities(pool, txs)
	blockRecoveryTimer.UpdateSince(start)
	return senders, authorities
}
