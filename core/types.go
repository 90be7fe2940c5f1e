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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/trace"
	"github.com/monadgo/execution/internal/workerpool"
)

// BlockArchive is the sequential block source.
type BlockArchive interface {
	// Get returns the block at number. Any failure is fatal to the caller.
	Get(number uint64) (*types.Block, error)
}

// StateStore is the versioned state store blocks are executed against.
type StateStore interface {
	// SetBlockAndPrefix scopes reads to block (number, id); the zero id
	// selects the finalized block.
	SetBlockAndPrefix(number uint64, id common.Hash)

	// ReadEthHeader returns the header of the block in scope.
	ReadEthHeader() (*types.Header, error)

	// NewBlockState returns a fresh overlay on the state in scope.
	NewBlockState() (*state.StateDB, error)

	// Commit writes an executed block as proposal id, recomputing the roots.
	// The proposal becomes the scope.
	Commit(overlay *state.StateDB, id common.Hash, header *types.Header, receipts types.Receipts, frames [][]trace.CallFrame, senders []common.Address, txs types.Transactions, ommers []*types.Header, withdrawals types.Withdrawals) error

	Finalize(number uint64, id common.Hash) error
	UpdateVerifiedBlock(number uint64) error

	// PrintStats returns a summary appended to the per-block log line.
	PrintStats() string
}

// BlockHashBuffer holds the hashes of recent finalized blocks.
type BlockHashBuffer interface {
	Set(number uint64, hash common.Hash) error
	Get(number uint64) common.Hash
	N() uint64
}

// RevertFunc decides whether the effects of the transaction at index must
// be undone after it executed. It may inspect st but must not modify it.
type RevertFunc func(index int, sender common.Address, tx *types.Transaction, st *chain.TxState) bool

// ExecuteArgs is everything the execution engine needs for one block.
type ExecuteArgs struct {
	Rules       *chain.Rules
	Block       *types.Block
	Senders     []common.Address
	Authorities [][]*common.Address
	State       *state.StateDB
	Hashes      BlockHashBuffer
	Pool        *workerpool.Pool
	Metrics     *BlockMetrics

	// One tracer of each kind per transaction.
	CallTracers  []trace.CallTracer
	StateTracers []trace.StateTracer

	Revert RevertFunc
}

// Executor executes the transactions of a block in order on args.State and
// returns one receipt per transaction.
type Executor interface {
	ExecuteBlock(args *ExecuteArgs) (types.Receipts, error)
}

// EventRecorder receives block lifecycle events. Implementations must not
// wait on their consumers.
type EventRecorder interface {
	BlockStart(number uint64, id common.Hash, header *types.Header, txs int)
	BlockEnd(number uint64, header *types.Header, gasUsed uint64)
	BlockFinalized(number uint64, id common.Hash)
	BlockVerified(number uint64)
	BlockReject(number uint64, reason error)
}

type noopRecorder struct{}

func (noopRecorder) BlockStart(uint64, common.Hash, *types.Header, int) {}
func (noopRecorder) BlockEnd(uint64, *types.Header, uint64)            {}
func (noopRecorder) BlockFinalized(uint64, common.Hash)                {}
func (noopRecorder) BlockVerified(uint64)                              {}
func (noopRecorder) BlockReject(uint64, error)                         {}

// ProcessResult is the outcome of a successfully processed block.
type ProcessResult struct {
	Receipts   types.Receipts
	CallFrames [][]trace.CallFrame
	StateDiffs []trace.StateDiff

	// AddressSet holds every sender and authority of the block; it becomes
	// the parent set of the next block.
	AddressSet *chain.AddressSet

	// Header is the verified output header.
	Header *types.Header

	Metrics *BlockMetrics
	GasUsed uint64
}
