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

package trace

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
)

// AccountDiff is the net change of one account. Unchanged fields are nil.
type AccountDiff struct {
	PrevBalance, Balance *big.Int
	PrevNonce, Nonce     *uint64
	PrevCode, Code       []byte
	CodeChanged          bool
	Storage              map[common.Hash]SlotDiff
}

// SlotDiff is the net change of one storage slot.
type SlotDiff struct {
	Prev, New common.Hash
}

// StateDiff maps accounts to their net change.
type StateDiff map[common.Address]*AccountDiff

// StateTracer collects the state changes of a single transaction.
type StateTracer interface {
	Hooks() *tracing.Hooks

	// Reset drops everything collected, used when the transaction is
	// rolled back.
	Reset()

	Diff() StateDiff
}

// NoopStateTracer discards everything.
type NoopStateTracer struct{}

func (NoopStateTracer) Hooks() *tracing.Hooks { return nil }
func (NoopStateTracer) Reset()                {}
func (NoopStateTracer) Diff() StateDiff       { return nil }

type stateTracer struct {
	diff StateDiff
}

// NewStateTracer creates a recording state tracer.
func NewStateTracer() StateTracer {
	return &stateTracer{diff: make(StateDiff)}
}

func (t *stateTracer) Hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnBalanceChange: t.onBalanceChange,
		OnNonceChange:   t.onNonceChange,
		OnCodeChange:    t.onCodeChange,
		OnStorageChange: t.onStorageChange,
	}
}

func (t *stateTracer) Reset() {
	t.diff = make(StateDiff)
}

func (t *stateTracer) Diff() StateDiff {
	return t.diff
}

func (t *stateTracer) account(addr common.Address) *AccountDiff {
	acc, ok := t.diff[addr]
	if !ok {
		acc = new(AccountDiff)
		t.diff[addr] = acc
	}
	return acc
}

func (t *stateTracer) onBalanceChange(addr common.Address, prev, new *big.Int, _ tracing.BalanceChangeReason) {
	acc := t.account(addr)
	if acc.PrevBalance == nil {
		acc.PrevBalance = copyBig(prev)
	}
	acc.Balance = copyBig(new)
}

func (t *stateTracer) onNonceChange(addr common.Address, prev, new uint64) {
	acc := t.account(addr)
	if acc.PrevNonce == nil {
		acc.PrevNonce = &prev
	}
	acc.Nonce = &new
}

func (t *stateTracer) onCodeChange(addr common.Address, _ common.Hash, prevCode []byte, _ common.Hash, code []byte) {
	acc := t.account(addr)
	if !acc.CodeChanged {
		acc.PrevCode = common.CopyBytes(prevCode)
		acc.CodeChanged = true
	}
	acc.Code = common.CopyBytes(code)
}

func (t *stateTracer) onStorageChange(addr common.Address, slot common.Hash, prev, new common.Hash) {
	acc := t.account(addr)
	if acc.Storage == nil {
		acc.Storage = make(map[common.Hash]SlotDiff)
	}
	if d, ok := acc.Storage[slot]; ok {
		prev = d.Prev
	}
	acc.Storage[slot] = SlotDiff{Prev: prev, New: new}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
