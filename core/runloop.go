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
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// reportBatch is the number of blocks covered by one throughput log line
// of a bounded run. Batches end at block numbers divisible by it, so runs
// resumed at any height log the same batch edges.
var reportBatch uint64 = 1000

// RunConfig selects the blocks a run executes.
type RunConfig struct {
	// Start is the first block to execute. The store must have finalized
	// Start-1.
	Start uint64

	// End is the last block to execute, inclusive. math.MaxUint64 streams
	// blocks until the run is cancelled.
	End uint64

	EnableTracing bool
}

// RunResult summarises a run.
type RunResult struct {
	// Next is the first block that was not executed.
	Next uint64

	Transactions uint64
	Gas          uint64
}

// BlockID returns the proposal id of block number. Replayed blocks have a
// single proposal per height, identified by the big-endian height.
func BlockID(number uint64) common.Hash {
	var id common.Hash
	binary.BigEndian.PutUint64(id[common.HashLength-8:], number)
	return id
}

// RunLoop executes the blocks [cfg.Start, cfg.End] from archive in order.
// Cancelling ctx stops the run at the next block boundary without error.
// On failure the result covers the blocks executed before the failing one.
func RunLoop(ctx context.Context, p *Pipeline, archive BlockArchive, cfg RunConfig) (*RunResult, error) {
	if cfg.Start == 0 {
		return nil, fmt.Errorf("%w: genesis cannot be executed", ErrParentLinkage)
	}
	p.SetTracing(cfg.EnableTracing)

	result := &RunResult{Next: cfg.Start}
	window, err := SeedGenerationWindow(archive, p.pool, p.chain, cfg.Start)
	if err != nil {
		return result, err
	}
	batch := reportBatch
	if cfg.End == math.MaxUint64 {
		batch = 1
	}
	var (
		stats    = newInsertStats(p.logger)
		parentID common.Hash
	)
	defer func() {
		if result.Next > cfg.Start {
			stats.report(result.Next - 1)
		}
	}()
	for number := cfg.Start; number <= cfg.End; number++ {
		if ctx.Err() != nil {
			p.logger.Info("Block execution interrupted", "next", number)
			break
		}
		block, err := archive.Get(number)
		if err != nil {
			return result, blockError(number, StageFetch, fmt.Errorf("%w: %v", ErrArchive, err))
		}
		id := BlockID(number)
		res, err := p.ProcessBlock(block, id, parentID, window)
		if err != nil {
			return result, err
		}
		window.Advance(res.AddressSet)
		parentID = id

		txs := uint64(len(res.Receipts))
		result.Transactions += txs
		result.Gas += res.GasUsed
		result.Next = number + 1
		stats.add(len(res.Receipts), res.GasUsed)

		if number%batch == 0 {
			stats.report(number)
		}
		if number == math.MaxUint64 {
			break
		}
	}
	return result, nil
}
