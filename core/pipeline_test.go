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
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	kind   string
	number uint64
}

type testRecorder struct {
	events []recordedEvent
	reject error
}

func (r *testRecorder) BlockStart(number uint64, _ common.Hash, _ *types.Header, _ int) {
	r.events = append(r.events, recordedEvent{"start", number})
}

func (r *testRecorder) BlockEnd(number uint64, _ *types.Header, _ uint64) {
	r.events = append(r.events, recordedEvent{"end", number})
}

func (r *testRecorder) BlockFinalized(number uint64, _ common.Hash) {
	r.events = append(r.events, recordedEvent{"finalized", number})
}

func (r *testRecorder) BlockVerified(number uint64) {
	r.events = append(r.events, recordedEvent{"verified", number})
}

func (r *testRecorder) BlockReject(number uint64, reason error) {
	r.events = append(r.events, recordedEvent{"reject", number})
	r.reject = reason
}

func TestProcessBlock(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, receipts, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, big.NewInt(params.Ether)))
		b.AddTx(transfer(t, c, key2, 0, recipient, big.NewInt(params.Ether)))
	})
	require.NoError(t, err)

	env := newTestEnv(t, c, testGenesis())
	rec := new(testRecorder)
	env.pipeline.SetRecorder(rec)

	res, err := env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	assert.Equal(t, blocks[0].Hash(), res.Header.Hash())
	require.Len(t, res.Receipts, 2)
	for i, receipt := range res.Receipts {
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
		assert.Equal(t, receipts[0][i].CumulativeGasUsed, receipt.CumulativeGasUsed)
		assert.Equal(t, blocks[0].Hash(), receipt.BlockHash)
	}
	assert.Equal(t, 2*params.TxGas, res.GasUsed)
	assert.True(t, res.AddressSet.Equal(chain.NewAddressSet(addr1, addr2)))

	number, ok := env.store.LatestFinalized()
	require.True(t, ok)
	assert.Equal(t, uint64(1), number)
	verified, _ := env.store.LatestVerified()
	assert.Equal(t, uint64(1), verified)
	assert.Equal(t, blocks[0].Hash(), env.pipeline.hashes.Get(1))

	assert.Equal(t, []recordedEvent{{"start", 1}, {"end", 1}, {"finalized", 1}, {"verified", 1}}, rec.events)

	statedb, err := env.store.NewBlockState()
	require.NoError(t, err)
	assert.Equal(t, uint64(2*params.Ether), statedb.GetBalance(recipient).Uint64())
	assert.Equal(t, uint64(1), statedb.GetNonce(addr1))

	lines := env.logs.find("Executed block")
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].attrs["txs"])
}

func TestProcessBlockMissingSender(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		for nonce := uint64(0); nonce < 5; nonce++ {
			b.AddTx(transfer(t, c, key1, nonce, recipient, common.Big1))
		}
	})
	require.NoError(t, err)

	// Strip the signature of the third transaction.
	txs := blocks[0].Transactions()
	bad := make([]*types.Transaction, len(txs))
	copy(bad, txs)
	bad[2] = types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.ChainID(),
		Nonce:     2,
		GasTipCap: big.NewInt(params.GWei),
		GasFeeCap: big.NewInt(2 * params.GWei),
		Gas:       params.TxGas,
		To:        &recipient,
		Value:     common.Big1,
	})
	invalid := types.NewBlock(blocks[0].Header(), &types.Body{Transactions: bad, Withdrawals: []*types.Withdrawal{}}, nil, trie.NewStackTrie(nil))

	env := newTestEnv(t, c, testGenesis())
	rec := new(testRecorder)
	env.pipeline.SetRecorder(rec)

	res, err := env.pipeline.ProcessBlock(invalid, BlockID(1), common.Hash{}, new(GenerationWindow))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMissingSender)
	assert.Contains(t, err.Error(), "transaction 2")

	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, StageRecover, blockErr.Stage)
	assert.Equal(t, uint64(1), blockErr.Number)

	assert.False(t, env.store.HasProposal(1, BlockID(1)))
	number, _ := env.store.LatestFinalized()
	assert.Equal(t, uint64(0), number)
	assert.Equal(t, []recordedEvent{{"reject", 1}}, rec.events)
	assert.ErrorIs(t, rec.reject, ErrMissingSender)
	assert.Empty(t, env.logs.find("Executed block"))

	// The corrected block commits as if the failure never happened.
	res, err = env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	assert.Equal(t, blocks[0].Hash(), res.Header.Hash())
	assert.Len(t, res.Receipts, 5)
}

func TestProcessBlockOverwritesParentHash(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, common.Big1))
	})
	require.NoError(t, err)

	header := blocks[0].Header()
	header.ParentHash = common.Hash{0xde, 0xad}
	relinked := blocks[0].WithSeal(header)
	require.NotEqual(t, blocks[0].Hash(), relinked.Hash())

	env := newTestEnv(t, c, testGenesis())
	res, err := env.pipeline.ProcessBlock(relinked, BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	assert.Equal(t, env.genesis.Hash(), res.Header.ParentHash)
	assert.Equal(t, blocks[0].Hash(), res.Header.Hash())
}

func TestProcessEmptyBlockKeepsRoot(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, nil)
	require.NoError(t, err)

	env := newTestEnv(t, c, testGenesis())
	res, err := env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	assert.Empty(t, res.Receipts)
	assert.Equal(t, uint64(0), res.GasUsed)
	assert.Equal(t, env.genesis.Root, res.Header.Root)
	assert.Equal(t, types.EmptyReceiptsHash, res.Header.ReceiptHash)
	assert.Equal(t, 0, res.AddressSet.Len())
}

func TestProcessBlockCommitMismatch(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, common.Big1))
	})
	require.NoError(t, err)

	header := blocks[0].Header()
	header.Root = common.Hash{0x01}
	forged := blocks[0].WithSeal(header)

	env := newTestEnv(t, c, testGenesis())
	rec := new(testRecorder)
	env.pipeline.SetRecorder(rec)

	_, err = env.pipeline.ProcessBlock(forged, BlockID(1), common.Hash{}, new(GenerationWindow))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitMismatch)
	assert.True(t, IsIntegrityFailure(err))
	assert.Contains(t, err.Error(), "invalid state root")

	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, StageCommit, blockErr.Stage)

	// Written, but neither finalized nor verified.
	assert.True(t, env.store.HasProposal(1, BlockID(1)))
	number, _ := env.store.LatestFinalized()
	assert.Equal(t, uint64(0), number)
	verified, _ := env.store.LatestVerified()
	assert.Equal(t, uint64(0), verified)
	assert.Equal(t, uint64(1), env.pipeline.hashes.N())
	assert.Equal(t, []recordedEvent{{"start", 1}, {"end", 1}, {"reject", 1}}, rec.events)
}

func TestProcessBlockValidation(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, common.Big1))
	})
	require.NoError(t, err)
	env := newTestEnv(t, c, testGenesis())

	header := blocks[0].Header()
	header.Difficulty = big.NewInt(1)
	_, err = env.pipeline.ProcessBlock(blocks[0].WithSeal(header), BlockID(1), common.Hash{}, new(GenerationWindow))
	assert.ErrorIs(t, err, chain.ErrInvalidDifficulty)

	// Nonce gap within one sender.
	gapped := types.NewBlock(blocks[0].Header(), &types.Body{
		Transactions: types.Transactions{transfer(t, c, key1, 0, recipient, common.Big1), transfer(t, c, key1, 2, recipient, common.Big1)},
		Withdrawals:  []*types.Withdrawal{},
	}, nil, trie.NewStackTrie(nil))
	_, err = env.pipeline.ProcessBlock(gapped, BlockID(1), common.Hash{}, new(GenerationWindow))
	assert.ErrorIs(t, err, chain.ErrNonceOrder)

	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, StageValidate, blockErr.Stage)

	// Unknown parent proposal.
	_, err = env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{0x42}, new(GenerationWindow))
	assert.ErrorIs(t, err, ErrParentLinkage)

	number, _ := env.store.LatestFinalized()
	assert.Equal(t, uint64(0), number)
}

func TestProcessBlockTracing(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, big.NewInt(7)))
	})
	require.NoError(t, err)

	env := newTestEnv(t, c, testGenesis())
	env.pipeline.SetTracing(true)
	res, err := env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)

	require.Len(t, res.CallFrames, 1)
	require.Len(t, res.CallFrames[0], 1)
	frame := res.CallFrames[0][0]
	assert.Equal(t, addr1, frame.From)
	assert.Equal(t, recipient, frame.To)
	assert.Equal(t, big.NewInt(7), frame.Value)

	require.Len(t, res.StateDiffs, 1)
	diff := res.StateDiffs[0][recipient]
	require.NotNil(t, diff)
	assert.Equal(t, big.NewInt(7), diff.Balance)

	frames, err := env.store.ReadCallFrames(1)
	require.NoError(t, err)
	assert.Equal(t, res.CallFrames, frames)
}

func TestSpeculativeRetries(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	key4, _ := crypto.HexToECDSA("0202020202020202020202020202020202020202020202020202020202020202")
	addr4 := crypto.PubkeyToAddress(key4.PublicKey)

	// The second transaction spends funds the first one transfers, so its
	// speculative run against the block start state fails. The third one
	// is independent.
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, addr4, big.NewInt(params.Ether)))
		b.AddTx(transfer(t, c, key4, 0, recipient, big.NewInt(params.GWei)))
		b.AddTx(transfer(t, c, key2, 0, recipient, big.NewInt(params.GWei)))
	})
	require.NoError(t, err)

	env := newTestEnv(t, c, testGenesis())
	res, err := env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	require.Len(t, res.Receipts, 3)
	assert.Equal(t, uint64(1), res.Metrics.Retries())
	assert.InDelta(t, 100.0/3, res.Metrics.RetryPercent(3), 0.001)
	assert.Greater(t, res.Metrics.TxExecTime(), time.Duration(0))

	lines := env.logs.find("Executed block")
	require.Len(t, lines, 1)
	assert.Equal(t, uint64(1), lines[0].attrs["retries"])
}

func TestProcessBlockSetCodeAuthorities(t *testing.T) {
	c := newTestChain(t, chain.DevnetConfig)
	var (
		chainID  = uint256.MustFromBig(c.ChainID())
		delegate = common.Address{0xde}
	)
	valid, err := types.SignSetCode(key2, types.SetCodeAuthorization{ChainID: *chainID, Address: delegate})
	require.NoError(t, err)
	// A signature that recovers to no address.
	broken := types.SetCodeAuthorization{ChainID: *chainID, Address: delegate, Nonce: 7}

	blocks, _, err := GenerateChain(c, testGenesis(), 2, func(i int, b *BlockGen) {
		switch i {
		case 0:
			tx, err := types.SignNewTx(key1, b.Signer(), &types.SetCodeTx{
				ChainID:   chainID,
				Nonce:     b.TxNonce(addr1),
				GasTipCap: uint256.NewInt(params.GWei),
				GasFeeCap: uint256.NewInt(2 * params.GWei),
				Gas:       200_000,
				To:        recipient,
				Value:     new(uint256.Int),
				AuthList:  []types.SetCodeAuthorization{valid, broken},
			})
			require.NoError(t, err)
			b.AddTx(tx)
		case 1:
			// The delegated authority tries to spend its reserve.
			value := new(big.Int).Mul(big.NewInt(995), big.NewInt(params.Ether))
			b.AddTx(transfer(t, c, key2, b.TxNonce(addr2), recipient, value))
		}
	})
	require.NoError(t, err)

	recovered := RecoverAuthorities(workerpool.New(2), blocks[0].Transactions())
	require.Len(t, recovered[0], 2)
	assert.Equal(t, addr2, *recovered[0][0])
	assert.Nil(t, recovered[0][1])

	env := newTestEnv(t, c, testGenesis())
	window := new(GenerationWindow)
	res, err := env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, window)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, res.Receipts[0].Status)
	assert.True(t, res.AddressSet.Equal(chain.NewAddressSet(addr1, addr2)))
	window.Advance(res.AddressSet)

	statedb, err := env.store.NewBlockState()
	require.NoError(t, err)
	assert.Equal(t, types.AddressToDelegation(delegate), statedb.GetCode(addr2))
	assert.Equal(t, uint64(1), statedb.GetNonce(addr2))

	res, err = env.pipeline.ProcessBlock(blocks[1], BlockID(2), BlockID(1), window)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusFailed, res.Receipts[0].Status)

	statedb, err = env.store.NewBlockState()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), statedb.GetNonce(addr2))
	assert.Equal(t, uint64(0), statedb.GetBalance(recipient).Uint64())
}

func TestProcessBlockTimesRecoveryOnce(t *testing.T) {
	metrics.Enable()
	c := newTestChain(t, legacyConfig)
	blocks, _, err := GenerateChain(c, testGenesis(), 1, func(i int, b *BlockGen) {
		b.AddTx(transfer(t, c, key1, 0, recipient, common.Big1))
	})
	require.NoError(t, err)

	env := newTestEnv(t, c, testGenesis())
	before := blockRecoveryTimer.Snapshot().Count()
	_, err = env.pipeline.ProcessBlock(blocks[0], BlockID(1), common.Hash{}, new(GenerationWindow))
	require.NoError(t, err)
	assert.Equal(t, before+1, blockRecoveryTimer.Snapshot().Count())
}
