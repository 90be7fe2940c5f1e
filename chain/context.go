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

import "github.com/ethereum/go-ethereum/common"

// Context is the cross-block view handed to the revert policy while a block
// executes. Grandparent and Parent are nil below height 2 and 1.
type Context struct {
	Grandparent *AddressSet
	Parent      *AddressSet
	Current     *AddressSet

	Senders     []common.Address
	Authorities [][]*common.Address
}

// TouchedByAncestors reports whether addr was a sender or authority in one
// of the two preceding blocks.
func (c *Context) TouchedByAncestors(addr common.Address) bool {
	return c.Parent.Contains(addr) || c.Grandparent.Contains(addr)
}

// SentEarlierInBlock reports whether addr sent, or authorised a delegation
// in, any transaction before index in the current block.
func (c *Context) SentEarlierInBlock(addr common.Address, index int) bool {
	for i := 0; i < index && i < len(c.Senders); i++ {
		if c.Senders[i] == addr {
			return true
		}
		if i < len(c.Authorities) {
			for _, auth := range c.Authorities[i] {
				if auth != nil && *auth == addr {
					return true
				}
			}
		}
	}
	return false
}
