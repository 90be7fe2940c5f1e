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
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationWindowAdvance(t *testing.T) {
	var (
		w = new(GenerationWindow)
		a = chain.NewAddressSet(addr1)
		b = chain.NewAddressSet(addr2)
		c = chain.NewAddressSet(addr3)
	)
	assert.Nil(t, w.Parent())
	assert.Nil(t, w.Grandparent())

	w.Advance(a)
	assert.Same(t, a, w.Parent())
	assert.Nil(t, w.Grandparent())

	w.Advance(b)
	w.Advance(c)
	assert.Same(t, c, w.Parent())
	assert.Same(t, b, w.Grandparent())

	ctx := w.Context(chain.NewAddressSet(), []common.Address{addr1}, nil)
	assert.True(t, ctx.TouchedByAncestors(addr2))
	assert.True(t, ctx.TouchedByAncestors(addr3))
	assert.False(t, ctx.TouchedByAncestors(addr1))
}

func TestSeedGenerationWindow(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	keys := []*ecdsa.PrivateKey{key1, key2, key3}
	blocks, _, err := GenerateChain(c, testGenesis(), 5, func(i int, b *BlockGen) {
		key := keys[i%3]
		b.AddTx(transfer(t, c, key, uint64(i/3), recipient, common.Big1))
	})
	require.NoError(t, err)

	// Sets a continuous run hands from block to block.
	env := newTestEnv(t, c, testGenesis())
	var (
		window = new(GenerationWindow)
		sets   = make(map[uint64]*chain.AddressSet)
	)
	parentID := common.Hash{}
	for _, block := range blocks {
		res, err := env.pipeline.ProcessBlock(block, BlockID(block.NumberU64()), parentID, window)
		require.NoError(t, err)
		window.Advance(res.AddressSet)
		sets[block.NumberU64()] = res.AddressSet
		parentID = BlockID(block.NumberU64())
	}
	archive := newArchive(t, blocks)
	pool := workerpool.New(2)

	for start := uint64(1); start <= 5; start++ {
		seeded, err := SeedGenerationWindow(archive, pool, c, start)
		require.NoError(t, err)
		assert.True(t, seeded.Parent().Equal(sets[start-1]), "parent of %d", start)
		assert.True(t, seeded.Grandparent().Equal(sets[start-2]), "grandparent of %d", start)
	}
	seeded, err := SeedGenerationWindow(archive, pool, c, 1)
	require.NoError(t, err)
	assert.Nil(t, seeded.Parent())
	assert.Nil(t, seeded.Grandparent())

	_, err = SeedGenerationWindow(make(memArchive), pool, c, 4)
	assert.ErrorIs(t, err, ErrArchive)
	var blockErr *BlockError
	require.True(t, errors.As(err, &blockErr))
	assert.Equal(t, uint64(2), blockErr.Number)
	assert.Equal(t, StageFetch, blockErr.Stage)

	// Only the parent is missing: its height is reported, not the grandparent's.
	partial := memArchive{2: blocks[1]}
	for i := 0; i < 20; i++ {
		_, err = SeedGenerationWindow(partial, pool, c, 4)
		require.True(t, errors.As(err, &blockErr))
		assert.Equal(t, uint64(3), blockErr.Number)
	}
}

func TestRecoverSenders(t *testing.T) {
	c := newTestChain(t, legacyConfig)
	signer := c.Rules(1, 0).Signer
	txs := types.Transactions{
		transfer(t, c, key1, 0, recipient, common.Big1),
		transfer(t, c, key2, 0, recipient, common.Big1),
		types.NewTx(&types.LegacyTx{Nonce: 0, To: &recipient, Gas: 21000}),
		transfer(t, c, key3, 0, recipient, common.Big1),
	}
	for _, threads := range []int{1, 4} {
		senders := RecoverSenders(workerpool.New(threads), signer, txs)
		require.Len(t, senders, 4)
		assert.Equal(t, addr1, *senders[0])
		assert.Equal(t, addr2, *senders[1])
		assert.Nil(t, senders[2])
		assert.Equal(t, addr3, *senders[3])

		_, err := denseSenders(senders)
		assert.ErrorIs(t, err, ErrMissingSender)
		assert.Contains(t, err.Error(), "transaction 2")

		authorities := RecoverAuthorities(workerpool.New(threads), txs)
		require.Len(t, authorities, 4)
		for _, list := range authorities {
			assert.Nil(t, list)
		}
	}
	dense, err := denseSenders(RecoverSenders(workerpool.New(2), signer, txs[:2]))
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addr1, addr2}, dense)
}
