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
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// speculativeResult is the outcome of executing a transaction against the
// state at the start of its block, ignoring every transaction before it.
type speculativeResult struct {
	executed bool
	failed   bool
	gasUsed  uint64
}

// matches reports whether the canonical receipt agrees with the speculative
// outcome. Disagreement means the speculative work had to be redone.
func (r speculativeResult) matches(receipt *types.Receipt) bool {
	return r.executed &&
		r.failed == (receipt.Status == types.ReceiptStatusFailed) &&
		r.gasUsed == receipt.GasUsed
}

// statePrefetcher executes the transactions of a block in parallel, each on
// its own copy of the block start state. Besides the optimistic results it
// warms the state caches the sequential pass reads through.
type statePrefetcher struct {
	config *params.ChainConfig
}

func newStatePrefetcher(config *params.ChainConfig) *statePrefetcher {
	return &statePrefetcher{config: config}
}

// Prefetch runs every transaction of args.Block on the pool. args.State is
// only copied, never modified.
func (p *statePrefetcher) Prefetch(args *ExecuteArgs, blockContext vm.BlockContext) []speculativeResult {
	var (
		txs     = args.Block.Transactions()
		header  = args.Block.Header()
		results = make([]speculativeResult, len(txs))
		copies  = make([]*state.StateDB, len(txs))
	)
	// Copies are taken up front; the base state must not be read while the
	// workers write to their copies.
	for i := range txs {
		copies[i] = args.State.Copy()
	}
	args.Pool.ForEach(len(txs), func(i int) {
		tx, statedb := txs[i], copies[i]

		msg, err := ethcore.TransactionToMessage(tx, args.Rules.Signer, header.BaseFee)
		if err != nil {
			return // Also invalid block, bail out
		}
		// Earlier transactions of the same sender are not applied here.
		msg.SkipNonceChecks = true

		statedb.SetTxContext(tx.Hash(), i)
		evm := vm.NewEVM(blockContext, statedb, p.config, vm.Config{})
		result, err := ethcore.ApplyMessage(evm, msg, new(ethcore.GasPool).AddGas(tx.Gas()))
		if err != nil {
			return
		}
		results[i] = speculativeResult{executed: true, failed: result.Failed(), gasUsed: result.UsedGas}
	})
	return results
}
