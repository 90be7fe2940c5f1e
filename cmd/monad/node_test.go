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
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core"
	"github.com/monadgo/execution/core/blockdb"
	"github.com/monadgo/execution/event"
	"github.com/monadgo/execution/internal/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

var (
	testKey, _  = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	testAddr    = crypto.PubkeyToAddress(testKey.PublicKey)
	testPayee   = common.Address{0xaa}
	testGenesis = &ethcore.Genesis{
		Coinbase:   common.Address{0xcb},
		GasLimit:   30_000_000,
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(params.InitialBaseFee),
		Alloc: types.GenesisAlloc{
			testAddr: {Balance: new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))},
		},
	}
)

// writeLedger generates n blocks with one transfer each and stores them,
// together with the genesis file, under dir.
func writeLedger(t *testing.T, dir string, n int) (ledger, genesisFile string) {
	c, err := chain.New(chain.DevnetConfig)
	require.NoError(t, err)
	signer := types.LatestSignerForChainID(c.ChainID())
	blocks, _, err := core.GenerateChain(c, testGenesis, n, func(i int, b *core.BlockGen) {
		tx, err := types.SignNewTx(testKey, signer, &types.DynamicFeeTx{
			ChainID:   c.ChainID(),
			Nonce:     uint64(i),
			GasTipCap: big.NewInt(params.GWei),
			GasFeeCap: big.NewInt(2 * params.GWei),
			Gas:       params.TxGas,
			To:        &testPayee,
			Value:     common.Big1,
		})
		require.NoError(t, err)
		b.AddTx(tx)
	})
	require.NoError(t, err)

	ledger = filepath.Join(dir, "ledger")
	archive, err := blockdb.Open(ledger, 0)
	require.NoError(t, err)
	for _, block := range blocks {
		require.NoError(t, archive.Put(block))
	}
	require.NoError(t, archive.Close())

	enc, err := json.Marshal(testGenesis)
	require.NoError(t, err)
	genesisFile = filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(genesisFile, enc, 0644))
	return ledger, genesisFile
}

func TestNodeRunAndResume(t *testing.T) {
	dir := t.TempDir()
	ledger, genesisFile := writeLedger(t, dir, 5)

	cfg := defaultConfig()
	cfg.Node.DataDir = filepath.Join(dir, "data")
	cfg.Node.LedgerDir = ledger
	cfg.Node.NBlocks = 3
	cfg.Node.Threads = 2

	_, err := openNode(&cfg)
	assert.ErrorIs(t, err, errNoGenesis)

	cfg.Node.Genesis = genesisFile
	withRing := runtime.GOOS == "linux"
	if withRing {
		cfg.Node.ExecEventRing = filepath.Join(dir, "exec-ring") + ":6:16"
	}
	n, err := openNode(&cfg)
	require.NoError(t, err)

	_, err = openNode(&cfg)
	assert.ErrorIs(t, err, errDatadirUsed)

	events := make(chan *event.Event, 64)
	if withRing {
		sub := n.recorder.SubscribeBlockEvents(events)
		defer sub.Unsubscribe()
	}
	result, err := n.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), result.Next)
	assert.Equal(t, uint64(3), result.Transactions)
	assert.Equal(t, 3*params.TxGas, result.Gas)
	if withRing {
		require.Eventually(t, func() bool { return len(events) == 12 }, 5*time.Second, 10*time.Millisecond)
	}
	n.Close()
	n.Close()

	// The next run starts after the finalized block and needs no genesis.
	cfg.Node.Genesis = ""
	cfg.Node.ExecEventRing = ""
	cfg.Node.NBlocks = 2
	n, err = openNode(&cfg)
	require.NoError(t, err)
	defer n.Close()

	result, err = n.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), result.Next)
	assert.Equal(t, uint64(2), result.Transactions)

	// Running past the end of the ledger fails on the missing block.
	_, err = n.run(context.Background())
	assert.ErrorIs(t, err, core.ErrArchive)
	assert.False(t, core.IsIntegrityFailure(err))

	cfg.Node.NBlocks = 0
	cfg.Node.Until = 5
	_, err = n.run(context.Background())
	assert.ErrorIs(t, err, errNothingToRun)
}

func TestRunConfig(t *testing.T) {
	dir := t.TempDir()
	ledger, genesisFile := writeLedger(t, dir, 1)
	cfg := defaultConfig()
	cfg.Node.DataDir = filepath.Join(dir, "data")
	cfg.Node.LedgerDir = ledger
	cfg.Node.Genesis = genesisFile

	n, err := openNode(&cfg)
	require.NoError(t, err)
	defer n.Close()

	runCfg, err := n.runConfig()
	require.NoError(t, err)
	assert.Equal(t, core.RunConfig{Start: 1, End: ^uint64(0)}, runCfg)

	cfg.Node.NBlocks = 10
	cfg.Node.TraceCalls = true
	runCfg, err = n.runConfig()
	require.NoError(t, err)
	assert.Equal(t, core.RunConfig{Start: 1, End: 10, EnableTracing: true}, runCfg)

	cfg.Node.Until = 4
	_, err = n.runConfig()
	assert.ErrorIs(t, err, errRangeConflict)

	cfg.Node.NBlocks = 0
	runCfg, err = n.runConfig()
	require.NoError(t, err)
	assert.Equal(t, core.RunConfig{Start: 1, End: 4, EnableTracing: true}, runCfg)
}

func TestDumpAndLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")

	app := flags.NewApp("test")
	app.Flags = nodeFlags
	app.Action = dumpConfig
	require.NoError(t, app.Run([]string{"test", "--datadir", "/tmp/monad-data", "--nblocks", "7", "--db.engine", "leveldb", file}))

	var cfg monadConfig
	app.Action = func(ctx *cli.Context) (err error) {
		cfg, err = loadBaseConfig(ctx)
		return err
	}
	require.NoError(t, app.Run([]string{"test", "--config", file, "--threads", "3"}))
	assert.Equal(t, "/tmp/monad-data", cfg.Node.DataDir)
	assert.Equal(t, uint64(7), cfg.Node.NBlocks)
	assert.Equal(t, 3, cfg.Node.Threads)
	assert.True(t, cfg.Node.Speculative)
	assert.Equal(t, "leveldb", cfg.Store.Engine)
	assert.Equal(t, chain.DevnetConfig, cfg.Chain)

	assert.ErrorContains(t, app.Run([]string{"test", "--chain", "nope"}), `unknown chain "nope"`)

	// A block limit from the command line replaces the one from the file.
	require.NoError(t, app.Run([]string{"test", "--config", file, "--until", "9"}))
	assert.Equal(t, uint64(0), cfg.Node.NBlocks)
	assert.Equal(t, uint64(9), cfg.Node.Until)

	err := app.Run([]string{"test", "--nblocks", "2", "--until", "9"})
	assert.ErrorContains(t, err, "can't be used at the same time")

	ledger := t.TempDir()
	require.NoError(t, app.Run([]string{"test", "--ledger", ledger}))
	assert.Equal(t, ledger, cfg.Node.LedgerDir)
	err = app.Run([]string{"test", "--ledger", filepath.Join(ledger, "missing")})
	assert.ErrorIs(t, err, flags.ErrMissingDirectory)

	app.Flags = append(append([]cli.Flag{}, nodeFlags...), metricsFlags...)
	require.NoError(t, app.Run([]string{"test", "--metrics", "--metrics.influxdbv2", "--metrics.influxdb.bucket", "replay", "--metrics.influxdb.tags", "host=a,region=b"}))
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Metrics.EnableInfluxDBV2)
	assert.False(t, cfg.Metrics.EnableInfluxDB)
	assert.Equal(t, "replay", cfg.Metrics.InfluxDBBucket)
	assert.Equal(t, "geth", cfg.Metrics.InfluxDBOrganization)
	assert.Equal(t, "host=a,region=b", cfg.Metrics.InfluxDBTags)
}
