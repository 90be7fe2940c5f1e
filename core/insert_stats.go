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
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/shirou/gopsutil/process"
)

// insertStats tracks and reports on block execution throughput of a batch.
type insertStats struct {
	processed int
	txs       int
	usedGas   uint64
	startTime mclock.AbsTime
	logger    log.Logger
}

func newInsertStats(logger log.Logger) *insertStats {
	return &insertStats{startTime: mclock.Now(), logger: logger}
}

// add counts one executed block.
func (st *insertStats) add(txs int, gas uint64) {
	st.processed++
	st.txs += txs
	st.usedGas += gas
}

// report logs the throughput of the blocks added since the last report,
// ending at block number, and starts a new batch. Empty batches are not
// reported.
func (st *insertStats) report(number uint64) {
	if st.processed == 0 {
		return
	}
	var (
		now     = mclock.Now()
		elapsed = now.Sub(st.startTime)
		seconds = elapsed.Seconds()
	)
	if seconds <= 0 {
		seconds = float64(time.Nanosecond) / float64(time.Second)
	}
	context := []interface{}{
		"number", number, "blocks", st.processed, "txs", st.txs,
		"mgas", float64(st.usedGas) / 1000000,
		"elapsed", common.PrettyDuration(elapsed),
		"tps", uint64(float64(st.txs) / seconds),
		"mgasps", float64(st.usedGas) / 1000000 / seconds,
	}
	if rss := residentMemory(); rss > 0 {
		context = append(context, "rss", common.StorageSize(rss))
	}
	st.logger.Info("Executed blocks", context...)
	*st = insertStats{startTime: now, logger: st.logger}
}

// residentMemory returns the resident set size of this process, zero if it
// cannot be determined.
func residentMemory() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return info.RSS
}
