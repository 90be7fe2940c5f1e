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
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/trace"
	"github.com/monadgo/execution/internal/workerpool"
)

// Pipeline turns one archived block into one finalized, verified block on
// top of the store. It is driven by a single goroutine; the parallel work
// of a block is handed to the worker pool.
type Pipeline struct {
	chain    *chain.Chain
	store    StateStore
	executor Executor
	hashes   BlockHashBuffer
	pool     *workerpool.Pool
	recorder EventRecorder
	logger   log.Logger
	tracing  bool
}

// NewPipeline creates a pipeline executing on top of store. The hash buffer
// must expect the first block the pipeline is going to process.
func NewPipeline(c *chain.Chain, store StateStore, executor Executor, hashes BlockHashBuffer, pool *workerpool.Pool) *Pipeline {
	return &Pipeline{
		chain:    c,
		store:    store,
		executor: executor,
		hashes:   hashes,
		pool:     pool,
		recorder: noopRecorder{},
		logger:   log.Root(),
	}
}

// SetRecorder installs the block lifecycle event sink.
func (p *Pipeline) SetRecorder(r EventRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	p.recorder = r
}

// SetLogger replaces the logger used for the per-block log lines.
func (p *Pipeline) SetLogger(logger log.Logger) {
	p.logger = logger
}

// SetTracing enables call and state tracing of every transaction.
func (p *Pipeline) SetTracing(enabled bool) {
	p.tracing = enabled
}

// ProcessBlock validates, executes and commits block as proposal id on top
// of the block (number-1, parentID). Every failure is returned as a
// *BlockError and leaves the finalized height unchanged.
func (p *Pipeline) ProcessBlock(block *types.Block, id, parentID common.Hash, window *GenerationWindow) (result *ProcessResult, err error) {
	var (
		start  = time.Now()
		number = block.NumberU64()
		txs    = block.Transactions()
	)
	defer func() {
		if err != nil {
			p.recorder.BlockReject(number, err)
		}
	}()
	if err := ValidateBlock(p.chain, block); err != nil {
		return nil, blockError(number, StageValidate, err)
	}
	rules := p.chain.Rules(number, block.Time())

	// Recover senders and authorities on the pool. The block is rejected
	// before any state is touched if a sender is unknown.
	recoverStart := time.Now()
	recovered, authorities := recoverBlock(p.pool, rules.Signer, block)
	senders, err := denseSenders(recovered)
	if err != nil {
		return nil, blockError(number, StageRecover, err)
	}
	recoverTime := time.Since(recoverStart)

	if err := chain.StaticValidateMonadBody(senders, txs); err != nil {
		return nil, blockError(number, StageValidate, err)
	}
	callTracers, stateTracers := p.newTracers(len(txs))

	current := chain.BuildAddressSet(recovered, authorities)
	ctx := window.Context(current, senders, authorities)

	block, _, err = relinkParent(p.store, block, parentID)
	if err != nil {
		return nil, blockError(number, StageValidate, err)
	}
	p.recorder.BlockStart(number, id, block.Header(), len(txs))

	overlay, err := p.store.NewBlockState()
	if err != nil {
		return nil, blockError(number, StageExecute, err)
	}
	var (
		header  = block.Header()
		metrics = new(BlockMetrics)
	)
	args := &ExecuteArgs{
		Rules:        rules,
		Block:        block,
		Senders:      senders,
		Authorities:  authorities,
		State:        overlay,
		Hashes:       p.hashes,
		Pool:         p.pool,
		Metrics:      metrics,
		CallTracers:  callTracers,
		StateTracers: stateTracers,
		Revert: func(index int, sender common.Address, tx *types.Transaction, st *chain.TxState) bool {
			return p.chain.RevertTransaction(number, header.Time, sender, tx, header.BaseFee, index, st, ctx)
		},
	}
	execStart := time.Now()
	receipts, err := p.executor.ExecuteBlock(args)
	if err != nil {
		return nil, blockError(number, StageExecute, err)
	}
	execTime := time.Since(execStart)

	frames := make([][]trace.CallFrame, len(txs))
	diffs := make([]trace.StateDiff, len(txs))
	for i := range txs {
		frames[i] = callTracers[i].Frames()
		diffs[i] = stateTracers[i].Diff()
	}
	output, commitTime, err := p.commitBlock(block, id, overlay, receipts, frames, senders)
	if err != nil {
		return nil, blockError(number, StageCommit, err)
	}
	elapsed := time.Since(start)

	blockExecutionTimer.Update(execTime)
	blockTotalTimer.Update(elapsed)
	blockTxMeter.Mark(int64(len(txs)))
	blockGasMeter.Mark(int64(output.GasUsed))
	blockRetryMeter.Mark(int64(metrics.Retries()))
	headBlockGauge.Update(int64(number))

	p.logger.Info("Executed block",
		"number", number, "id", id, "txs", len(txs), "gas", output.GasUsed,
		"retries", metrics.Retries(), "retry%", metrics.RetryPercent(len(txs)),
		"recovery", common.PrettyDuration(recoverTime),
		"exec", common.PrettyDuration(execTime),
		"txexec", common.PrettyDuration(metrics.TxExecTime()),
		"commit", common.PrettyDuration(commitTime),
		"elapsed", common.PrettyDuration(elapsed),
		"tps", perSecond(uint64(len(txs)), elapsed),
		"gps", perSecond(output.GasUsed, elapsed),
		"exectps", perSecond(uint64(len(txs)), metrics.TxExecTime()),
		"execgps", perSecond(output.GasUsed, metrics.TxExecTime()),
		"store", p.store.PrintStats(),
	)
	return &ProcessResult{
		Receipts:   receipts,
		CallFrames: frames,
		StateDiffs: diffs,
		AddressSet: current,
		Header:     output,
		Metrics:    metrics,
		GasUsed:    output.GasUsed,
	}, nil
}

// newTracers creates one call and one state tracer per transaction. With
// tracing disabled every tracer is a no-op.
func (p *Pipeline) newTracers(n int) ([]trace.CallTracer, []trace.StateTracer) {
	var (
		calls  = make([]trace.CallTracer, n)
		states = make([]trace.StateTracer, n)
	)
	for i := 0; i < n; i++ {
		if p.tracing {
			calls[i], states[i] = trace.NewCallTracer(), trace.NewStateTracer()
		} else {
			calls[i], states[i] = trace.NoopCallTracer{}, trace.NoopStateTracer{}
		}
	}
	return calls, states
}

// perSecond returns the rate of count over d, zero for an empty interval.
func perSecond(count uint64, d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(float64(count) / d.Seconds())
}
