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

	"github.com/ethereum/go-ethereum/core/types"
)

// Revision is a protocol revision of the chain. The set is closed: every
// switch over a Revision must handle all values below NumRevisions.
type Revision uint8

const (
	RevisionZero Revision = iota
	RevisionOne
	RevisionTwo
	RevisionThree
	RevisionFour

	// NumRevisions is the number of known revisions.
	NumRevisions
)

// LatestRevision is the newest revision this node understands.
const LatestRevision = NumRevisions - 1

func (r Revision) String() string {
	switch r {
	case RevisionZero:
		return "MONAD_ZERO"
	case RevisionOne:
		return "MONAD_ONE"
	case RevisionTwo:
		return "MONAD_TWO"
	case RevisionThree:
		return "MONAD_THREE"
	case RevisionFour:
		return "MONAD_FOUR"
	}
	return fmt.Sprintf("Revision(%d)", uint8(r))
}

// Rules is the strategy object holding everything that varies by revision.
// It is selected once per block from the block's timestamp and is read-only
// afterwards.
type Rules struct {
	Revision Revision

	// IsPrague enables the Prague EVM fork, which carries EIP-7702 set-code
	// transactions and the EIP-2935 history contract.
	IsPrague bool

	// MaxGasLimit bounds the header gas limit.
	MaxGasLimit uint64

	// ReserveBalance enables the reserve balance revert policy.
	ReserveBalance bool

	// Signer recovers senders for transactions of this block.
	Signer types.Signer
}

// newRules builds the rules for a revision. Each revision is spelled out
// in full so that the differences between neighbours stay visible.
func newRules(rev Revision) *Rules {
	switch rev {
	case RevisionZero:
		return &Rules{Revision: rev, MaxGasLimit: 150_000_000}
	case RevisionOne:
		return &Rules{Revision: rev, MaxGasLimit: 150_000_000}
	case RevisionTwo:
		return &Rules{Revision: rev, MaxGasLimit: 200_000_000}
	case RevisionThree:
		return &Rules{Revision: rev, MaxGasLimit: 200_000_000}
	case RevisionFour:
		return &Rules{Revision: rev, MaxGasLimit: 200_000_000, IsPrague: true, ReserveBalance: true}
	}
	panic(fmt.Sprintf("unhandled revision %v", rev))
}

// AllowsTxType reports whether a transaction envelope type may appear in a
// block of this revision.
func (r *Rules) AllowsTxType(typ uint8) bool {
	switch typ {
	case types.LegacyTxType, types.AccessListTxType, types.DynamicFeeTxType:
		return true
	case types.SetCodeTxType:
		return r.IsPrague
	}
	return false
}
