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

package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcore "github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
)

// StaticValidateHeader checks the header fields that can be verified without
// the parent or the state.
func (c *Chain) StaticValidateHeader(header *types.Header) error {
	rules := c.rules[c.Revision(header.Time)]

	if header.Difficulty == nil || header.Difficulty.Sign() != 0 {
		return ErrInvalidDifficulty
	}
	if header.Nonce != (types.BlockNonce{}) {
		return ErrInvalidNonce
	}
	if header.UncleHash != types.EmptyUncleHash {
		return ErrInvalidUncleHash
	}
	if len(header.Extra) > int(params.MaximumExtraDataSize) {
		return fmt.Errorf("%w: %d > %d", ErrExtraDataTooLong, len(header.Extra), params.MaximumExtraDataSize)
	}
	if header.GasUsed > header.GasLimit {
		return fmt.Errorf("%w: have %d, limit %d", ErrGasUsedAboveLimit, header.GasUsed, header.GasLimit)
	}
	if header.GasLimit > rules.MaxGasLimit {
		return fmt.Errorf("%w: have %d, max %d", ErrGasLimitTooHigh, header.GasLimit, rules.MaxGasLimit)
	}
	if header.BaseFee == nil {
		return ErrMissingBaseFee
	}
	if header.WithdrawalsHash == nil {
		return ErrMissingWithdrawalsHash
	}
	if header.BlobGasUsed == nil || header.ExcessBlobGas == nil {
		return ErrMissingBlobFields
	}
	if *header.BlobGasUsed != 0 || *header.ExcessBlobGas != 0 {
		return fmt.Errorf("%w: used %d, excess %d", ErrNonZeroBlobGas, *header.BlobGasUsed, *header.ExcessBlobGas)
	}
	if header.ParentBeaconRoot == nil {
		return ErrMissingBeaconRoot
	}
	if header.RequestsHash != nil {
		return ErrUnexpectedRequests
	}
	return nil
}

// StaticValidateBlock checks the body against the header and checks every
// transaction for well-formedness under the block's revision.
func (c *Chain) StaticValidateBlock(block *types.Block) error {
	var (
		header = block.Header()
		rules  = c.rules[c.Revision(header.Time)]
		txs    = block.Transactions()
	)
	if len(block.Uncles()) > 0 {
		return fmt.Errorf("%w: %d", ErrHasOmmers, len(block.Uncles()))
	}
	if hash := types.DeriveSha(txs, trie.NewStackTrie(nil)); hash != header.TxHash {
		return fmt.Errorf("%w: have %x, want %x", ErrTxRootMismatch, hash, header.TxHash)
	}
	withdrawals := block.Withdrawals()
	if len(withdrawals) > 0 {
		return fmt.Errorf("%w: %d", ErrNonEmptyWithdrawals, len(withdrawals))
	}
	if hash := types.DeriveSha(withdrawals, trie.NewStackTrie(nil)); header.WithdrawalsHash == nil || hash != *header.WithdrawalsHash {
		return fmt.Errorf("%w: have %x", ErrWithdrawalRootMismatch, hash)
	}
	var gas uint64
	for i, tx := range txs {
		if err := c.validateTx(rules, tx); err != nil {
			return fmt.Errorf("tx %d [%v]: %w", i, tx.Hash().Hex(), err)
		}
		gas += tx.Gas()
		if gas > header.GasLimit {
			return fmt.Errorf("%w: have %d at tx %d, limit %d", ErrTxGasAboveBlockLimit, gas, i, header.GasLimit)
		}
	}
	return nil
}

func (c *Chain) validateTx(rules *Rules, tx *types.Transaction) error {
	if !rules.AllowsTxType(tx.Type()) {
		return fmt.Errorf("%w: type %d in %v", ErrTxTypeNotSupported, tx.Type(), rules.Revision)
	}
	if tx.Type() != types.LegacyTxType || tx.Protected() {
		if tx.ChainId().Cmp(c.ChainID()) != 0 {
			return fmt.Errorf("%w: have %v, want %v", ErrInvalidChainID, tx.ChainId(), c.ChainID())
		}
	}
	if tx.GasFeeCapIntCmp(tx.GasTipCap()) < 0 {
		return ErrFeeCapBelowTip
	}
	create := tx.To() == nil
	if tx.Type() == types.SetCodeTxType {
		if len(tx.SetCodeAuthorizations()) == 0 {
			return ErrEmptyAuthList
		}
		if create {
			return ErrSetCodeTxCreate
		}
	}
	if create && len(tx.Data()) > params.MaxInitCodeSize {
		return fmt.Errorf("%w: code size %v, limit %v", ErrMaxInitCodeSize, len(tx.Data()), params.MaxInitCodeSize)
	}
	gas, err := ethcore.IntrinsicGas(tx.Data(), tx.AccessList(), tx.SetCodeAuthorizations(), create, true, true, true)
	if err != nil {
		return err
	}
	if tx.Gas() < gas {
		return fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.Gas(), gas)
	}
	return nil
}

// StaticValidateMonadBody checks the rules that depend on sender identity:
// transactions of one sender appear with consecutive nonces in block order.
func StaticValidateMonadBody(senders []common.Address, txs types.Transactions) error {
	next := make(map[common.Address]uint64)
	for i, tx := range txs {
		sender := senders[i]
		if want, ok := next[sender]; ok && tx.Nonce() != want {
			return fmt.Errorf("%w: tx %d from %v has nonce %d, want %d", ErrNonceOrder, i, sender, tx.Nonce(), want)
		}
		next[sender] = tx.Nonce() + 1
	}
	return nil
}
