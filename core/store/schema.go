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

package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// The fields below define the low level database schema prefixing. Chain data
// of finalized blocks (headers, bodies, receipts, canonical hashes) is written
// with the go-ethereum rawdb schema so the usual tooling can read it.
var (
	// finalizedKey tracks the latest finalized block number.
	finalizedKey = []byte("MonadFinalized")

	// verifiedKey tracks the latest block whose output header was verified.
	verifiedKey = []byte("MonadVerified")

	proposalPrefix  = []byte("monad-p") // proposalPrefix + num (uint64 big endian) + id + kind -> proposal data
	blockIDPrefix   = []byte("monad-i") // blockIDPrefix + num (uint64 big endian) -> finalized block id
	callFramePrefix = []byte("monad-f") // callFramePrefix + num (uint64 big endian) + hash -> call frames
	senderPrefix    = []byte("monad-s") // senderPrefix + num (uint64 big endian) + hash -> senders
)

// Proposal record kinds.
const (
	kindHeader   byte = 'h'
	kindBody     byte = 'b'
	kindReceipts byte = 'r'
	kindFrames   byte = 'f'
	kindSenders  byte = 's'
)

var proposalKinds = []byte{kindHeader, kindBody, kindReceipts, kindFrames, kindSenders}

// encodeBlockNumber encodes a block number as big endian uint64
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// proposalKey = proposalPrefix + num (uint64 big endian) + id + kind
func proposalKey(number uint64, id common.Hash, kind byte) []byte {
	key := make([]byte, 0, len(proposalPrefix)+8+common.HashLength+1)
	key = append(key, proposalPrefix...)
	key = append(key, encodeBlockNumber(number)...)
	key = append(key, id.Bytes()...)
	return append(key, kind)
}

// blockIDKey = blockIDPrefix + num (uint64 big endian)
func blockIDKey(number uint64) []byte {
	return append(append([]byte{}, blockIDPrefix...), encodeBlockNumber(number)...)
}

// callFrameKey = callFramePrefix + num (uint64 big endian) + hash
func callFrameKey(number uint64, hash common.Hash) []byte {
	return append(append(append([]byte{}, callFramePrefix...), encodeBlockNumber(number)...), hash.Bytes()...)
}

// senderKey = senderPrefix + num (uint64 big endian) + hash
func senderKey(number uint64, hash common.Hash) []byte {
	return append(append(append([]byte{}, senderPrefix...), encodeBlockNumber(number)...), hash.Bytes()...)
}
