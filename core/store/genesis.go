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

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// errGenesisNoConfig is returned when no genesis alloc is available for an
// empty store.
var errGenesisNoConfig = errors.New("genesis has no alloc")

// ReadGenesis decodes a genesis specification from a JSON file.
func ReadGenesis(path string) (*ethcore.Genesis, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	defer file.Close()

	genesis := new(ethcore.Genesis)
	if err := json.NewDecoder(file).Decode(genesis); err != nil {
		return nil, fmt.Errorf("invalid genesis file: %w", err)
	}
	return genesis, nil
}

// GenesisHeader returns the header of block zero for the given genesis and
// state root.
func GenesisHeader(g *ethcore.Genesis, root common.Hash) *types.Header {
	head := &types.Header{
		Number:           new(big.Int).SetUint64(g.Number),
		Nonce:            types.EncodeNonce(0),
		Time:             g.Timestamp,
		ParentHash:       g.ParentHash,
		Extra:            g.ExtraData,
		GasLimit:         g.GasLimit,
		Difficulty:       new(big.Int),
		MixDigest:        g.Mixhash,
		Coinbase:         g.Coinbase,
		Root:             root,
		UncleHash:        types.EmptyUncleHash,
		TxHash:           types.EmptyTxsHash,
		ReceiptHash:      types.EmptyReceiptsHash,
		WithdrawalsHash:  &types.EmptyWithdrawalsHash,
		BlobGasUsed:      new(uint64),
		ExcessBlobGas:    new(uint64),
		ParentBeaconRoot: new(common.Hash),
	}
	if g.GasLimit == 0 {
		head.GasLimit = params.GenesisGasLimit
	}
	if g.BaseFee != nil {
		head.BaseFee = new(big.Int).Set(g.BaseFee)
	} else {
		head.BaseFee = new(big.Int).SetUint64(params.InitialBaseFee)
	}
	return head
}

// InitGenesis writes the genesis state and block as finalized block zero. A
// store that already holds finalized blocks is left untouched and its genesis
// header is returned.
func (s *Store) InitGenesis(genesis *ethcore.Genesis) (*types.Header, error) {
	if number, ok := s.LatestFinalized(); ok {
		header, err := s.ReadCanonicalHeader(0)
		if err != nil {
			return nil, err
		}
		log.Info("Using existing state store", "finalized", number, "genesis", header.Hash())
		return header, nil
	}
	if genesis == nil || genesis.Alloc == nil {
		return nil, errGenesisNoConfig
	}
	if genesis.Number != 0 {
		return nil, fmt.Errorf("genesis block number %d, want 0", genesis.Number)
	}
	statedb, err := state.New(types.EmptyRootHash, s.sdb)
	if err != nil {
		return nil, err
	}
	for addr, account := range genesis.Alloc {
		if account.Balance != nil {
			statedb.AddBalance(addr, uint256.MustFromBig(account.Balance), tracing.BalanceIncreaseGenesisBalance)
		}
		statedb.SetCode(addr, account.Code)
		statedb.SetNonce(addr, account.Nonce, tracing.NonceChangeGenesis)
		for key, value := range account.Storage {
			statedb.SetState(addr, key, value)
		}
	}
	root, err := statedb.Commit(0, false, false)
	if err != nil {
		return nil, err
	}
	if err := s.triedb.Commit(root, false); err != nil {
		return nil, err
	}
	header := GenesisHeader(genesis, root)
	hash := header.Hash()

	batch := s.db.NewBatch()
	rawdb.WriteHeader(batch, header)
	rawdb.WriteBody(batch, hash, 0, &types.Body{Withdrawals: []*types.Withdrawal{}})
	rawdb.WriteReceipts(batch, hash, 0, nil)
	rawdb.WriteCanonicalHash(batch, hash, 0)
	rawdb.WriteHeadHeaderHash(batch, hash)
	rawdb.WriteHeadBlockHash(batch, hash)
	rawdb.WriteFinalizedBlockHash(batch, hash)
	if err := batch.Put(finalizedKey, encodeBlockNumber(0)); err != nil {
		return nil, err
	}
	if err := batch.Put(verifiedKey, encodeBlockNumber(0)); err != nil {
		return nil, err
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	log.Info("Wrote genesis block", "hash", hash, "root", root, "accounts", len(genesis.Alloc))
	return header, nil
}
