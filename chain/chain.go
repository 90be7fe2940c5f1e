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

// Package chain implements the chain ruleset: the revision schedule, the
// static block validators and the transaction revert policy.
package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Chain is the ruleset of one network. It is immutable after construction
// and safe for concurrent use.
type Chain struct {
	config    Config
	ethConfig *params.ChainConfig
	policy    RevertPolicy
	rules     [NumRevisions]*Rules
}

// New validates the config and creates the ruleset. The default revert
// policy is the reserve balance policy.
func New(config Config) (*Chain, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	reserve := DefaultReserveBalance
	if config.ReserveBalance != nil {
		reserve = config.ReserveBalance
	}
	c := &Chain{
		config:    config,
		ethConfig: config.ethConfig(),
		policy:    NewReserveBalancePolicy(uint256.MustFromBig(reserve)),
	}
	if err := c.ethConfig.CheckConfigForkOrder(); err != nil {
		return nil, fmt.Errorf("chain %s: %w", config.Name, err)
	}
	for rev := Revision(0); rev < NumRevisions; rev++ {
		c.rules[rev] = newRules(rev)
	}
	return c, nil
}

// SetRevertPolicy replaces the revert policy. It must be called before the
// chain is shared.
func (c *Chain) SetRevertPolicy(policy RevertPolicy) {
	c.policy = policy
}

// Config returns the configuration the chain was created from.
func (c *Chain) Config() Config { return c.config }

// ChainID returns the chain id.
func (c *Chain) ChainID() *big.Int { return c.ethConfig.ChainID }

// EthConfig returns the EVM chain configuration.
func (c *Chain) EthConfig() *params.ChainConfig { return c.ethConfig }

// Revision returns the revision active at the given block timestamp.
func (c *Chain) Revision(timestamp uint64) Revision {
	rev := RevisionZero
	for i, t := range c.config.RevisionTimes {
		if timestamp >= t {
			rev = Revision(i)
		}
	}
	return rev
}

// Rules returns a copy of the revision rules for a block, with the signer
// bound to the block's position.
func (c *Chain) Rules(number, timestamp uint64) *Rules {
	rules := *c.rules[c.Revision(timestamp)]
	rules.Signer = types.MakeSigner(c.ethConfig, new(big.Int).SetUint64(number), timestamp)
	return &rules
}

// RevertTransaction decides whether the effects of an executed transaction
// must be undone. It is invoked once per transaction, after execution and
// before the receipt is built.
func (c *Chain) RevertTransaction(number, timestamp uint64, sender common.Address, tx *types.Transaction, baseFee *big.Int, index int, st *TxState, ctx *Context) bool {
	if !c.rules[c.Revision(timestamp)].ReserveBalance {
		return false
	}
	return c.policy.ShouldRevert(&RevertRequest{
		Number:  number,
		Sender:  sender,
		Tx:      tx,
		BaseFee: baseFee,
		Index:   index,
		State:   st,
		Context: ctx,
	})
}
