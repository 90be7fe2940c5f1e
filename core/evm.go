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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// newBlockContext creates the EVM block context for header. Historical
// hashes come from the block hash buffer. Blob transactions are not
// accepted by the chain, so the blob base fee is pinned to its minimum.
func newBlockContext(header *types.Header, hashes BlockHashBuffer) vm.BlockContext {
	var baseFee *big.Int
	if header.BaseFee != nil {
		baseFee = new(big.Int).Set(header.BaseFee)
	}
	return vm.BlockContext{
		CanTransfer: ethcore.CanTransfer,
		Transfer:    ethcore.Transfer,
		GetHash:     getHashFn(header, hashes),
		Coinbase:    header.Coinbase,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int),
		BaseFee:     baseFee,
		BlobBaseFee: big.NewInt(params.BlobTxMinBlobGasprice),
		GasLimit:    header.GasLimit,
		Random:      &header.MixDigest,
	}
}

// getHashFn returns a BLOCKHASH resolver for the block with the given
// header. The parent hash is taken from the header; older hashes from the
// buffer.
func getHashFn(header *types.Header, hashes BlockHashBuffer) func(n uint64) common.Hash {
	number := header.Number.Uint64()
	return func(n uint64) common.Hash {
		switch {
		case n >= number:
			return common.Hash{}
		case n+1 == number:
			return header.ParentHash
		case hashes == nil:
			return common.Hash{}
		default:
			return hashes.Get(n)
		}
	}
}
