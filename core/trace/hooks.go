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
	"github.com/ethereum/go-ethereum/core/types"
)

// Combine merges hook sets into one that fans every event out in argument
// order. Nil sets are skipped; the result is nil when nothing is left.
func Combine(hooks ...*tracing.Hooks) *tracing.Hooks {
	var live []*tracing.Hooks
	for _, h := range hooks {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	combined := new(tracing.Hooks)
	for _, h := range live {
		if h.OnTxStart != nil {
			combined.OnTxStart = chainTxStart(combined.OnTxStart, h.OnTxStart)
		}
		if h.OnTxEnd != nil {
			combined.OnTxEnd = chainTxEnd(combined.OnTxEnd, h.OnTxEnd)
		}
		if h.OnEnter != nil {
			combined.OnEnter = chainEnter(combined.OnEnter, h.OnEnter)
		}
		if h.OnExit != nil {
			combined.OnExit = chainExit(combined.OnExit, h.OnExit)
		}
		if h.OnLog != nil {
			combined.OnLog = chainLog(combined.OnLog, h.OnLog)
		}
		if h.OnBalanceChange != nil {
			combined.OnBalanceChange = chainBalance(combined.OnBalanceChange, h.OnBalanceChange)
		}
		if h.OnNonceChange != nil {
			combined.OnNonceChange = chainNonce(combined.OnNonceChange, h.OnNonceChange)
		}
		if h.OnCodeChange != nil {
			combined.OnCodeChange = chainCode(combined.OnCodeChange, h.OnCodeChange)
		}
		if h.OnStorageChange != nil {
			combined.OnStorageChange = chainStorage(combined.OnStorageChange, h.OnStorageChange)
		}
	}
	return combined
}

func chainTxStart(a, b tracing.TxStartHook) tracing.TxStartHook {
	if a == nil {
		return b
	}
	return func(vm *tracing.VMContext, tx *types.Transaction, from common.Address) {
		a(vm, tx, from)
		b(vm, tx, from)
	}
}

func chainTxEnd(a, b tracing.TxEndHook) tracing.TxEndHook {
	if a == nil {
		return b
	}
	return func(receipt *types.Receipt, err error) {
		a(receipt, err)
		b(receipt, err)
	}
}

func chainEnter(a, b tracing.EnterHook) tracing.EnterHook {
	if a == nil {
		return b
	}
	return func(depth int, typ byte, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
		a(depth, typ, from, to, input, gas, value)
		b(depth, typ, from, to, input, gas, value)
	}
}

func chainExit(a, b tracing.ExitHook) tracing.ExitHook {
	if a == nil {
		return b
	}
	return func(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
		a(depth, output, gasUsed, err, reverted)
		b(depth, output, gasUsed, err, reverted)
	}
}

func chainLog(a, b tracing.LogHook) tracing.LogHook {
	if a == nil {
		return b
	}
	return func(log *types.Log) {
		a(log)
		b(log)
	}
}

func chainBalance(a, b tracing.BalanceChangeHook) tracing.BalanceChangeHook {
	if a == nil {
		return b
	}
	return func(addr common.Address, prev, new *big.Int, reason tracing.BalanceChangeReason) {
		a(addr, prev, new, reason)
		b(addr, prev, new, reason)
	}
}

func chainNonce(a, b tracing.NonceChangeHook) tracing.NonceChangeHook {
	if a == nil {
		return b
	}
	return func(addr common.Address, prev, new uint64) {
		a(addr, prev, new)
		b(addr, prev, new)
	}
}

func chainCode(a, b tracing.CodeChangeHook) tracing.CodeChangeHook {
	if a == nil {
		return b
	}
	return func(addr common.Address, prevCodeHash common.Hash, prevCode []byte, codeHash common.Hash, code []byte) {
		a(addr, prevCodeHash, prevCode, codeHash, code)
		b(addr, prevCodeHash, prevCode, codeHash, code)
	}
}

func chainStorage(a, b tracing.StorageChangeHook) tracing.StorageChangeHook {
	if a == nil {
		return b
	}
	return func(addr common.Address, slot common.Hash, prev, new common.Hash) {
		a(addr, slot, prev, new)
		b(addr, slot, prev, new)
	}
}
