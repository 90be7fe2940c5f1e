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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/blockhash"
	"github.com/monadgo/execution/core/store"
	"github.com/monadgo/execution/internal/workerpool"
)

// BlockGen creates blocks for testing.
// See GenerateChain for a detailed explanation.
type BlockGen struct {
	i       int
	cm      *chainMaker
	header  *types.Header
	statedb *state.StateDB
	txs     []*types.Transaction
	nonces  map[common.Address]uint64
}

// SetCoinbase sets the coinbase of the generated block.
func (b *BlockGen) SetCoinbase(addr common.Address) {
	b.header.Coinbase = addr
}

// SetExtra sets the extra data field of the generated block.
func (b *BlockGen) SetExtra(data []byte) {
	b.header.Extra = data
}

// SetGasLimit sets the gas limit of the generated block.
func (b *BlockGen) SetGasLimit(limit uint64) {
	b.header.GasLimit = limit
}

// OffsetTime modifies the time instance of a block. Blocks never go back in
// time beyond their parent.
func (b *BlockGen) OffsetTime(seconds int64) {
	parent := b.PrevBlock(-1)
	t := int64(b.header.Time) + seconds
	if t < int64(parent.Time) {
		t = int64(parent.Time)
	}
	b.header.Time = uint64(t)
}

// AddTx adds a transaction to the generated block. Transactions are executed
// in order once the generator function returns.
func (b *BlockGen) AddTx(tx *types.Transaction) {
	if from, err := types.Sender(b.Signer(), tx); err == nil {
		b.nonces[from] = tx.Nonce() + 1
	}
	b.txs = append(b.txs, tx)
}

// TxNonce returns the next valid transaction nonce for the account at addr,
// counting the transactions already added to this block.
func (b *BlockGen) TxNonce(addr common.Address) uint64 {
	if nonce, ok := b.nonces[addr]; ok {
		return nonce
	}
	return b.statedb.GetNonce(addr)
}

// GetBalance returns the balance of addr at the start of the block.
func (b *BlockGen) GetBalance(addr common.Address) *uint256.Int {
	return b.statedb.GetBalance(addr)
}

// Number returns the block number of the block being generated.
func (b *BlockGen) Number() *big.Int {
	return new(big.Int).Set(b.header.Number)
}

// Timestamp returns the timestamp of the block being generated.
func (b *BlockGen) Timestamp() uint64 {
	return b.header.Time
}

// BaseFee returns the base fee of the block being generated.
func (b *BlockGen) BaseFee() *big.Int {
	return new(big.Int).Set(b.header.BaseFee)
}

// Signer returns the transaction signer of the block being generated.
func (b *BlockGen) Signer() types.Signer {
	return b.cm.chain.Rules(b.header.Number.Uint64(), b.header.Time).Signer
}

// PrevBlock returns the header of a previously generated block. It panics if
// the block does not exist. Index -1 is the parent of the current block.
func (b *BlockGen) PrevBlock(index int) *types.Header {
	if index >= b.i {
		panic(fmt.Errorf("block index %d out of range (%d,%d)", index, -1, b.i))
	}
	if index == -1 {
		return b.cm.genesis
	}
	return b.cm.blocks[index].Header()
}

type chainMaker struct {
	chain   *chain.Chain
	genesis *types.Header
	blocks  []*types.Block
}

// GenerateChain creates a chain of n blocks on top of genesis. For each
// block it calls gen with a BlockGen that can add transactions and tweak
// the header; the block is then executed with a StateProcessor on a scratch
// store so that its roots, bloom and gas used are those a replay computes.
//
// Blocks are timestamped one second apart, keep the genesis gas limit and
// base fee, and carry an empty withdrawal list and a zero beacon root.
func GenerateChain(c *chain.Chain, genesis *ethcore.Genesis, n int, gen func(int, *BlockGen)) ([]*types.Block, []types.Receipts, error) {
	db := store.NewMemory()
	defer db.Close()

	head, err := db.InitGenesis(genesis)
	if err != nil {
		return nil, nil, err
	}
	hashes := blockhash.New(1)
	pool := workerpool.New(0)
	var (
		cm        = &chainMaker{chain: c, genesis: head}
		receipts  = make([]types.Receipts, 0, n)
		processor = NewStateProcessor(c, false)
		window    = new(GenerationWindow)
		parent    = head
		parentID  common.Hash
	)
	for i := 0; i < n; i++ {
		number := parent.Number.Uint64() + 1
		id := BlockID(number)

		db.SetBlockAndPrefix(number-1, parentID)
		statedb, err := db.NewBlockState()
		if err != nil {
			return nil, nil, err
		}
		b := &BlockGen{i: i, cm: cm, header: makeHeader(parent), statedb: statedb, nonces: make(map[common.Address]uint64)}
		if gen != nil {
			gen(i, b)
		}
		block := types.NewBlockWithHeader(b.header).WithBody(types.Body{Transactions: b.txs, Withdrawals: []*types.Withdrawal{}})

		rules := c.Rules(number, b.header.Time)
		recovered, authorities := recoverBlock(pool, rules.Signer, block)
		senders, err := denseSenders(recovered)
		if err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", number, err)
		}
		current := chain.BuildAddressSet(recovered, authorities)
		ctx := window.Context(current, senders, authorities)
		header := block.Header()
		blockReceipts, err := processor.ExecuteBlock(&ExecuteArgs{
			Rules:       rules,
			Block:       block,
			Senders:     senders,
			Authorities: authorities,
			State:       statedb,
			Hashes:      hashes,
			Pool:        pool,
			Metrics:     new(BlockMetrics),
			Revert: func(index int, sender common.Address, tx *types.Transaction, st *chain.TxState) bool {
				return c.RevertTransaction(number, header.Time, sender, tx, header.BaseFee, index, st, ctx)
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("block %d: %w", number, err)
		}
		if err := db.Commit(statedb, id, header, blockReceipts, nil, senders, block.Transactions(), nil, block.Withdrawals()); err != nil {
			return nil, nil, err
		}
		output, err := db.ReadEthHeader()
		if err != nil {
			return nil, nil, err
		}
		if err := db.Finalize(number, id); err != nil {
			return nil, nil, err
		}
		if err := hashes.Set(number, output.Hash()); err != nil {
			return nil, nil, err
		}
		// Receipts were built before the block hash was known.
		sealed := types.NewBlockWithHeader(output).WithBody(types.Body{Transactions: b.txs, Withdrawals: []*types.Withdrawal{}})
		for _, r := range blockReceipts {
			r.BlockHash = sealed.Hash()
			for _, l := range r.Logs {
				l.BlockHash = sealed.Hash()
			}
		}
		cm.blocks = append(cm.blocks, sealed)
		receipts = append(receipts, blockReceipts)
		window.Advance(current)
		parent, parentID = output, id
	}
	return cm.blocks, receipts, nil
}

func makeHeader(parent *types.Header) *types.Header {
	return &types.Header{
		ParentHash:       parent.Hash(),
		UncleHash:        types.EmptyUncleHash,
		Coinbase:         parent.Coinbase,
		Difficulty:       new(big.Int),
		Number:           new(big.Int).Add(parent.Number, common.Big1),
		GasLimit:         parent.GasLimit,
		Time:             parent.Time + 1,
		BaseFee:          new(big.Int).Set(parent.BaseFee),
		WithdrawalsHash:  &types.EmptyWithdrawalsHash,
		BlobGasUsed:      new(uint64),
		ExcessBlobGas:    new(uint64),
		ParentBeaconRoot: new(common.Hash),
	}
}
