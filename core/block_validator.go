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
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/chain"
)

// ValidateBlock runs the stateless header and body checks of the chain
// rules, stopping at the first violation.
func ValidateBlock(c *chain.Chain, block *types.Block) error {
	if err := c.StaticValidateHeader(block.Header()); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}
	if err := c.StaticValidateBlock(block); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// relinkParent scopes the store to the parent of block and replaces the
// block's parent hash with the hash of the stored parent header. The store
// is the authority on chain linkage, so a wrong serialized parent hash is
// overwritten rather than rejected.
func relinkParent(store StateStore, block *types.Block, parentID common.Hash) (*types.Block, *types.Header, error) {
	number := block.NumberU64()
	if number == 0 {
		return nil, nil, fmt.Errorf("%w: genesis cannot be executed", ErrParentLinkage)
	}
	store.SetBlockAndPrefix(number-1, parentID)
	parent, err := store.ReadEthHeader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParentLinkage, err)
	}
	if parent.Number.Uint64()+1 != number {
		return nil, nil, fmt.Errorf("%w: parent is block %d", ErrParentLinkage, parent.Number.Uint64())
	}
	if block.Time() < parent.Time {
		return nil, nil, fmt.Errorf("%w: timestamp %d older than parent %d", ErrParentLinkage, block.Time(), parent.Time)
	}
	header := block.Header()
	if hash := parent.Hash(); header.ParentHash != hash {
		log.Debug("Overwriting parent hash", "number", number, "have", header.ParentHash, "stored", hash)
		header.ParentHash = hash
		block = block.WithSeal(header)
	}
	return block, parent, nil
}

// ValidateOutputHeader compares the header of the input block with the one
// the store produced on commit. Every field must match.
func ValidateOutputHeader(expected, output *types.Header) error {
	fields := []struct {
		name          string
		remote, local string
	}{
		{"parent hash", expected.ParentHash.Hex(), output.ParentHash.Hex()},
		{"ommers hash", expected.UncleHash.Hex(), output.UncleHash.Hex()},
		{"beneficiary", expected.Coinbase.Hex(), output.Coinbase.Hex()},
		{"state root", expected.Root.Hex(), output.Root.Hex()},
		{"transactions root", expected.TxHash.Hex(), output.TxHash.Hex()},
		{"receipts root", expected.ReceiptHash.Hex(), output.ReceiptHash.Hex()},
		{"logs bloom", hexutil.Encode(expected.Bloom[:]), hexutil.Encode(output.Bloom[:])},
		{"difficulty", bigString(expected.Difficulty), bigString(output.Difficulty)},
		{"number", bigString(expected.Number), bigString(output.Number)},
		{"gas limit", strconv.FormatUint(expected.GasLimit, 10), strconv.FormatUint(output.GasLimit, 10)},
		{"gas used", strconv.FormatUint(expected.GasUsed, 10), strconv.FormatUint(output.GasUsed, 10)},
		{"timestamp", strconv.FormatUint(expected.Time, 10), strconv.FormatUint(output.Time, 10)},
		{"extra data", hexutil.Encode(expected.Extra), hexutil.Encode(output.Extra)},
		{"mix digest", expected.MixDigest.Hex(), output.MixDigest.Hex()},
		{"nonce", hexutil.Encode(expected.Nonce[:]), hexutil.Encode(output.Nonce[:])},
		{"base fee", bigString(expected.BaseFee), bigString(output.BaseFee)},
		{"withdrawals root", hashString(expected.WithdrawalsHash), hashString(output.WithdrawalsHash)},
		{"blob gas used", u64String(expected.BlobGasUsed), u64String(output.BlobGasUsed)},
		{"excess blob gas", u64String(expected.ExcessBlobGas), u64String(output.ExcessBlobGas)},
		{"parent beacon root", hashString(expected.ParentBeaconRoot), hashString(output.ParentBeaconRoot)},
		{"requests hash", hashString(expected.RequestsHash), hashString(output.RequestsHash)},
	}
	for _, f := range fields {
		if f.remote != f.local {
			return fmt.Errorf("%w: invalid %s (remote: %s local: %s)", ErrCommitMismatch, f.name, f.remote, f.local)
		}
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "nil"
	}
	return v.String()
}

func hashString(h *common.Hash) string {
	if h == nil {
		return "nil"
	}
	return h.Hex()
}

func u64String(v *uint64) string {
	if v == nil {
		return "nil"
	}
	return strconv.FormatUint(*v, 10)
}
