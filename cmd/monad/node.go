// Copyright 2025 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.


package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core"
	"github.com/monadgo/execution/core/blockdb"
	"github.com/monadgo/execution/core/blockhash"
	"github.com/monadgo/execution/core/store"
	"github.com/monadgo/execution/event"
	"github.com/monadgo/execution/internal/workerpool"
)

var (
	errDatadirUsed   = errors.New("datadir already used by another process")
	errNoLedger      = errors.New("no ledger directory configured")
	errNoGenesis     = errors.New("state store is empty and no genesis was given")
	errRangeConflict = errors.New("NBlocks and Until cannot both be set")
	errNothingToRun  = errors.New("nothing to execute")
	stateDirName     = "state"
	datadirLockName  = "LOCK"
)

// node owns the resources of one replay: the locked data directory, the
// state store, the block archive and the optional event ring.
type node struct {
	cfg      *monadConfig
	dirLock  *flock.Flock
	chain    *chain.Chain
	store    *store.Store
	archive  *blockdb.Archive
	recorder *event.Recorder
}

// openNode locks the data directory and opens every resource, initializing
// an empty store from the configured genesis.
func openNode(cfg *monadConfig) (n *node, err error) {
	if cfg.Node.LedgerDir == "" {
		return nil, errNoLedger
	}
	c, err := chain.New(cfg.Chain)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Node.DataDir, 0700); err != nil {
		return nil, err
	}
	n = &node{cfg: cfg, chain: c, dirLock: flock.New(filepath.Join(cfg.Node.DataDir, datadirLockName))}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()
	locked, err := n.dirLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errDatadirUsed, cfg.Node.DataDir)
	}
	if n.store, err = store.Open(filepath.Join(cfg.Node.DataDir, stateDirName), cfg.Store); err != nil {
		return nil, err
	}
	if _, ok := n.store.LatestFinalized(); !ok {
		if err := n.initGenesis(); err != nil {
			return nil, err
		}
	}
	if n.archive, err = blockdb.Open(cfg.Node.LedgerDir, cfg.Node.BlockCacheMB); err != nil {
		return nil, err
	}
	// The ring is created before any signal handler is installed, so an
	// interrupt during its creation still terminates the process.
	if cfg.Node.ExecEventRing != "" {
		ringCfg, err := event.ParseRingConfig(cfg.Node.ExecEventRing)
		if err != nil {
			return nil, err
		}
		ring, err := event.CreateOwnedRing(ringCfg)
		if err != nil {
			return nil, err
		}
		n.recorder = event.NewRecorder(ring)
	}
	return n, nil
}

func (n *node) initGenesis() error {
	if n.cfg.Node.Genesis == "" {
		return errNoGenesis
	}
	genesis, err := store.ReadGenesis(n.cfg.Node.Genesis)
	if err != nil {
		return err
	}
	head, err := n.store.InitGenesis(genesis)
	if err != nil {
		return err
	}
	log.Info("Initialised state store from genesis", "hash", head.Hash(), "root", head.Root)
	return nil
}

// runConfig derives the block range of the run from the finalized height.
func (n *node) runConfig() (core.RunConfig, error) {
	finalized, ok := n.store.LatestFinalized()
	if !ok {
		return core.RunConfig{}, errNoGenesis
	}
	cfg := core.RunConfig{
		Start:         finalized + 1,
		End:           math.MaxUint64,
		EnableTracing: n.cfg.Node.TraceCalls,
	}
	switch node := n.cfg.Node; {
	case node.NBlocks > 0 && node.Until > 0:
		return core.RunConfig{}, errRangeConflict
	case node.Until > 0:
		if node.Until <= finalized {
			return core.RunConfig{}, fmt.Errorf("%w: block %d is already finalized", errNothingToRun, node.Until)
		}
		cfg.End = node.Until
	case node.NBlocks > 0 && node.NBlocks <= math.MaxUint64-finalized:
		cfg.End = finalized + node.NBlocks
	}
	return cfg, nil
}

// run executes blocks until the configured range is done or ctx, or an
// interrupt, stops it.
func (n *node) run(ctx context.Context) (*core.RunResult, error) {
	runCfg, err := n.runConfig()
	if err != nil {
		return nil, err
	}
	hashes, err := blockhash.Init(n.store, runCfg.Start)
	if err != nil {
		return nil, err
	}
	pool := workerpool.New(n.cfg.Node.Threads)
	pipeline := core.NewPipeline(n.chain, n.store, core.NewStateProcessor(n.chain, n.cfg.Node.Speculative), hashes, pool)
	if n.recorder != nil {
		pipeline.SetRecorder(n.recorder)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	end := any("unbounded")
	if runCfg.End != math.MaxUint64 {
		end = runCfg.End
	}
	log.Info("Starting block execution", "chain", n.cfg.Chain.Name, "start", runCfg.Start, "end", end,
		"threads", pool.Threads(), "speculative", n.cfg.Node.Speculative, "tracing", runCfg.EnableTracing)

	start := time.Now()
	result, err := core.RunLoop(ctx, pipeline, n.archive, runCfg)
	if result != nil {
		elapsed := time.Since(start)
		log.Info("Finished block execution", "start", runCfg.Start, "next", result.Next,
			"blocks", result.Next-runCfg.Start, "txs", result.Transactions, "mgas", float64(result.Gas)/1e6,
			"elapsed", common.PrettyDuration(elapsed), "tps", rate(result.Transactions, elapsed))
	}
	if err != nil {
		log.Error("Block execution failed", "err", err)
	}
	return result, err
}

func rate(count uint64, d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(float64(count) / d.Seconds())
}

// Close releases every resource held by the node. It is safe to call more
// than once.
func (n *node) Close() {
	if n.recorder != nil {
		if err := n.recorder.Close(); err != nil {
			log.Warn("Failed to close event ring", "err", err)
		}
		n.recorder = nil
	}
	if n.archive != nil {
		if err := n.archive.Close(); err != nil {
			log.Warn("Failed to close block archive", "err", err)
		}
		n.archive = nil
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			log.Warn("Failed to close state store", "err", err)
		}
		n.store = nil
	}
	if n.dirLock != nil {
		n.dirLock.Unlock()
		n.dirLock = nil
	}
}
