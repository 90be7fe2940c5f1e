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
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/blockdb"
	"github.com/monadgo/execution/core/blockhash"
	"github.com/monadgo/execution/core/store"
	"github.com/monadgo/execution/internal/workerpool"
	"github.com/stretchr/testify/require"
)

var (
	key1, _ = crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	key2, _ = crypto.HexToECDSA("8a1f9a8f95be41cd7ccb6168179afb4504aefe388d1e14474d32c45c72ce7b7a")
	key3, _ = crypto.HexToECDSA("49a7b37aa6f6645917e7b807e9d1c00d4fa71f18343b0d4122a4d2df64dd6fee")
	addr1   = crypto.PubkeyToAddress(key1.PublicKey)
	addr2   = crypto.PubkeyToAddress(key2.PublicKey)
	addr3   = crypto.PubkeyToAddress(key3.PublicKey)

	recipient = common.Address{0xaa}
	coinbase  = common.Address{0xcb}

	initialFunds = new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
)

// legacyConfig stops before the revision that activates the reserve balance
// policy, so no transaction is ever reverted.
var legacyConfig = chain.Config{
	Name:          "test",
	ChainID:       chain.DevnetChainID,
	RevisionTimes: []uint64{0, 0, 0, 0},
}

func newTestChain(t *testing.T, config chain.Config) *chain.Chain {
	c, err := chain.New(config)
	require.NoError(t, err)
	return c
}

func testGenesis() *ethcore.Genesis {
	return &ethcore.Genesis{
		Coinbase: coinbase,
		GasLimit: 30_000_000,
		BaseFee:  big.NewInt(params.InitialBaseFee),
		Alloc: types.GenesisAlloc{
			addr1: {Balance: initialFunds},
			addr2: {Balance: initialFunds},
			addr3: {Balance: initialFunds},
		},
	}
}

func transfer(t *testing.T, c *chain.Chain, key *ecdsa.PrivateKey, nonce uint64, to common.Address, value *big.Int) *types.Transaction {
	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(c.ChainID()), &types.DynamicFeeTx{
		ChainID:   c.ChainID(),
		Nonce:     nonce,
		GasTipCap: big.NewInt(params.GWei),
		GasFeeCap: big.NewInt(2 * params.GWei),
		Gas:       params.TxGas,
		To:        &to,
		Value:     value,
	})
	require.NoError(t, err)
	return tx
}

type testEnv struct {
	chain    *chain.Chain
	store    *store.Store
	pipeline *Pipeline
	genesis  *types.Header
	logs     *captureHandler
}

// newTestEnv creates a pipeline over a fresh memory store holding genesis.
func newTestEnv(t *testing.T, c *chain.Chain, genesis *ethcore.Genesis) *testEnv {
	s := store.NewMemory()
	t.Cleanup(func() { s.Close() })

	head, err := s.InitGenesis(genesis)
	require.NoError(t, err)
	env := &testEnv{chain: c, store: s, genesis: head, logs: new(captureHandler)}
	env.restart(t, 1)
	return env
}

// restart replaces the pipeline as if the process came back up with next as
// the first block to execute.
func (env *testEnv) restart(t *testing.T, next uint64) {
	hashes, err := blockhash.Init(env.store, next)
	require.NoError(t, err)
	env.pipeline = NewPipeline(env.chain, env.store, NewStateProcessor(env.chain, true), hashes, workerpool.New(4))
	env.pipeline.SetLogger(log.NewLogger(env.logs))
}

func newArchive(t *testing.T, blocks []*types.Block) *blockdb.Archive {
	archive, err := blockdb.Open(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	for _, block := range blocks {
		require.NoError(t, archive.Put(block))
	}
	return archive
}

type memArchive map[uint64]*types.Block

func (a memArchive) Get(number uint64) (*types.Block, error) {
	if block, ok := a[number]; ok {
		return block, nil
	}
	return nil, fmt.Errorf("block %d not archived", number)
}

type logRecord struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

// captureHandler is a slog handler keeping every record in memory.
type captureHandler struct {
	mu      sync.Mutex
	records []logRecord
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, logRecord{level: r.Level, msg: r.Message, attrs: attrs})
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

// find returns the records with the given message.
func (h *captureHandler) find(msg string) []logRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	var found []logRecord
	for _, r := range h.records {
		if r.msg == msg {
			found = append(found, r)
		}
	}
	return found
}

// atLeast returns the records at or above level.
func (h *captureHandler) atLeast(level slog.Level) []logRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	var found []logRecord
	for _, r := range h.records {
		if r.level >= level {
			found = append(found, r)
		}
	}
	return found
}
