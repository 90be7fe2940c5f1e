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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// TxState is the mutable per-transaction state handed to the revert
// policy. Balances of the sender and authorities are captured before the
// transaction runs.
type TxState struct {
	StateDB *state.StateDB

	// Fee is the gas fee debited from the sender.
	Fee *uint256.Int

	pre map[common.Address]*uint256.Int
}

// NewTxState snapshots the balances of addrs in db.
func NewTxState(db *state.StateDB, addrs ...common.Address) *TxState {
	st := &TxState{
		StateDB: db,
		Fee:     new(uint256.Int),
		pre:     make(map[common.Address]*uint256.Int, len(addrs)),
	}
	for _, addr := range addrs {
		if _, ok := st.pre[addr]; !ok {
			st.pre[addr] = new(uint256.Int).Set(db.GetBalance(addr))
		}
	}
	return st
}

// PreBalance returns the balance of addr before the transaction, or nil if
// it was not captured.
func (st *TxState) PreBalance(addr common.Address) *uint256.Int {
	return st.pre[addr]
}

// RevertRequest carries the inputs of one revert decision.
type RevertRequest struct {
	Number  uint64
	Sender  common.Address
	Tx      *types.Transaction
	BaseFee *big.Int
	Index   int
	State   *TxState
	Context *Context
}

// RevertPolicy decides whether an executed transaction is rolled back. A
// rolled back transaction keeps its nonce increment and gas fee.
type RevertPolicy interface {
	ShouldRevert(req *RevertRequest) bool
}

// ReserveBalancePolicy protects the balance that consensus relied on when
// it admitted transactions of blocks that are not executed yet. A
// transaction reverts when it leaves its sender or one of its authorities
// below min(reserve, balance before the transaction); the sender may spend
// gas out of the reserve.
//
// An undelegated sender that was not touched by the two previous blocks and
// has not acted earlier in this block may empty its account.
type ReserveBalancePolicy struct {
	reserve *uint256.Int
}

// NewReserveBalancePolicy creates the policy with the given reserve, in wei.
func NewReserveBalancePolicy(reserve *uint256.Int) *ReserveBalancePolicy {
	return &ReserveBalancePolicy{reserve: new(uint256.Int).Set(reserve)}
}

// ShouldRevert implements RevertPolicy.
func (p *ReserveBalancePolicy) ShouldRevert(req *RevertRequest) bool {
	st := req.State
	if p.dippedIntoReserve(st, req.Sender, st.Fee) && !p.emptyingAllowed(req) {
		return true
	}
	if req.Index >= len(req.Context.Authorities) {
		return false
	}
	for _, auth := range req.Context.Authorities[req.Index] {
		if auth == nil || *auth == req.Sender {
			continue
		}
		if p.dippedIntoReserve(st, *auth, nil) {
			return true
		}
	}
	return false
}

func (p *ReserveBalancePolicy) dippedIntoReserve(st *TxState, addr common.Address, fee *uint256.Int) bool {
	pre := st.PreBalance(addr)
	if pre == nil {
		return false
	}
	threshold := new(uint256.Int).Set(p.reserve)
	if pre.Lt(threshold) {
		threshold.Set(pre)
	}
	if fee != nil {
		if fee.Gt(threshold) {
			threshold.Clear()
		} else {
			threshold.Sub(threshold, fee)
		}
	}
	return st.StateDB.GetBalance(addr).Lt(threshold)
}

func (p *ReserveBalancePolicy) emptyingAllowed(req *RevertRequest) bool {
	ctx := req.Context
	if ctx.TouchedByAncestors(req.Sender) || ctx.SentEarlierInBlock(req.Sender, req.Index) {
		return false
	}
	_, delegated := types.ParseDelegation(req.State.StateDB.GetCode(req.Sender))
	return !delegated
}
