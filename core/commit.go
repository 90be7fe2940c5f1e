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
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/monadgo/execution/core/trace"
)

// slowCommitThreshold is the commit duration above which a warning is logged.
const slowCommitThreshold = 500 * time.Millisecond

// commitBlock writes the executed block to the store, checks the resulting
// header against the input block and makes the block finalized and verified.
// On a header mismatch nothing is finalized.
func (p *Pipeline) commitBlock(block *types.Block, id common.Hash, overlay *state.StateDB, receipts types.Receipts, frames [][]trace.CallFrame, senders []common.Address) (*types.Header, time.Duration, error) {
	var (
		number = block.NumberU64()
		start  = time.Now()
	)
	err := p.store.Commit(overlay, id, block.Header(), receipts, frames, senders, block.Transactions(), block.Uncles(), block.Withdrawals())
	if err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)
	blockCommitTimer.Update(elapsed)
	if elapsed > slowCommitThreshold {
		slowCommitMeter.Mark(1)
		p.logger.Warn("Slow block commit detected", "number", number, "elapsed", common.PrettyDuration(elapsed))
	}
	output, err := p.store.ReadEthHeader()
	if err != nil {
		return nil, elapsed, err
	}
	p.recorder.BlockEnd(number, output, output.GasUsed)

	if err := ValidateOutputHeader(block.Header(), output); err != nil {
		return nil, elapsed, err
	}
	if err := p.store.Finalize(number, id); err != nil {
		return nil, elapsed, err
	}
	p.recorder.BlockFinalized(number, id)

	if err := p.store.UpdateVerifiedBlock(number); err != nil {
		return nil, elapsed, err
	}
	p.recorder.BlockVerified(number)

	if err := p.hashes.Set(number, output.Hash()); err != nil {
		return nil, elapsed, err
	}
	return output, elapsed, nil
}
