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

import "errors"

// List of header validation errors.
var (
	ErrInvalidDifficulty      = errors.New("non-zero difficulty")
	ErrInvalidNonce           = errors.New("non-zero nonce")
	ErrInvalidUncleHash       = errors.New("non-empty uncle hash")
	ErrExtraDataTooLong       = errors.New("extra-data too long")
	ErrGasUsedAboveLimit      = errors.New("gas used above gas limit")
	ErrGasLimitTooHigh        = errors.New("gas limit above revision maximum")
	ErrMissingBaseFee         = errors.New("missing base fee")
	ErrMissingWithdrawalsHash = errors.New("missing withdrawals hash")
	ErrNonEmptyWithdrawals    = errors.New("withdrawals not supported")
	ErrMissingBlobFields      = errors.New("missing blob gas fields")
	ErrNonZeroBlobGas         = errors.New("non-zero blob gas")
	ErrMissingBeaconRoot      = errors.New("missing parent beacon root")
	ErrUnexpectedRequests     = errors.New("unexpected requests hash")
)

// List of body validation errors.
var (
	ErrHasOmmers              = errors.New("block has ommers")
	ErrTxRootMismatch         = errors.New("transaction root mismatch")
	ErrWithdrawalRootMismatch = errors.New("withdrawals root mismatch")
	ErrTxTypeNotSupported     = errors.New("transaction type not supported")
	ErrInvalidChainID         = errors.New("invalid chain id")
	ErrIntrinsicGas           = errors.New("intrinsic gas too low")
	ErrTxGasAboveBlockLimit   = errors.New("sum of transaction gas limits above block gas limit")
	ErrMaxInitCodeSize        = errors.New("max initcode size exceeded")
	ErrEmptyAuthList          = errors.New("set code transaction with empty auth list")
	ErrSetCodeTxCreate        = errors.New("set code transaction cannot create contract")
	ErrFeeCapBelowTip         = errors.New("max priority fee per gas higher than max fee per gas")
	ErrNonceOrder             = errors.New("sender nonces not consecutive")
)
