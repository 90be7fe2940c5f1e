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
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	blockRecoveryTimer  = metrics.NewRegisteredTimer("monad/block/recovery", nil)
	blockExecutionTimer = metrics.NewRegisteredTimer("monad/block/execution", nil)
	blockCommitTimer    = metrics.NewRegisteredTimer("monad/block/commit", nil)
	blockTotalTimer     = metrics.NewRegisteredTimer("monad/block/total", nil)

	blockTxMeter    = metrics.NewRegisteredMeter("monad/block/txs", nil)
	blockGasMeter   = metrics.NewRegisteredMeter("monad/block/gas", nil)
	blockRetryMeter = metrics.NewRegisteredMeter("monad/block/retries", nil)
	slowCommitMeter = metrics.NewRegisteredMeter("monad/block/slowcommit", nil)
	headBlockGauge  = metrics.NewRegisteredGauge("monad/block/head", nil)
)

// BlockMetrics accumulates per-block execution counters. It is safe for
// concurrent use by the execution engine.
type BlockMetrics struct {
	retries  atomic.Uint64
	execTime atomic.Int64
}

// IncRetries counts a transaction whose speculative result was discarded.
func (m *BlockMetrics) IncRetries() {
	m.retries.Add(1)
}

// Retries returns the number of discarded speculative results.
func (m *BlockMetrics) Retries() uint64 {
	return m.retries.Load()
}

// SetTxExecTime records the wall time spent executing transactions.
func (m *BlockMetrics) SetTxExecTime(d time.Duration) {
	m.execTime.Store(int64(d))
}

// TxExecTime returns the wall time spent executing transactions.
func (m *BlockMetrics) TxExecTime() time.Duration {
	return time.Duration(m.execTime.Load())
}

// RetryPercent returns retries as a share of txs.
func (m *BlockMetrics) RetryPercent(txs int) float64 {
	if txs == 0 {
		return 0
	}
	return 100 * float64(m.Retries()) / float64(txs)
}
