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

// Package store implements the versioned state store. Executed blocks are
// recorded as proposals keyed by (number, block id) until they are finalized,
// at which point they become canonical chain data and their state trie is
// flushed to disk.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/monadgo/execution/core/trace"
)

var (
	// ErrUnknownBlock is returned when the requested block is neither a
	// pending proposal nor part of the finalized chain.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrNoScope is returned by operations that need a block scope before
	// SetBlockAndPrefix was called.
	ErrNoScope = errors.New("no block scope set")

	// ErrFinalizeOrder is returned when finalizing anything but the block
	// after the latest finalized one.
	ErrFinalizeOrder = errors.New("finalize out of order")
)

var (
	commitTimer    = metrics.NewRegisteredTimer("monad/store/commit", nil)
	finalizeTimer  = metrics.NewRegisteredTimer("monad/store/finalize", nil)
	finalizedGauge = metrics.NewRegisteredGauge("monad/store/finalized", nil)
	verifiedGauge  = metrics.NewRegisteredGauge("monad/store/verified", nil)
)

// Database engines supported by Open.
const (
	EnginePebble  = "pebble"
	EngineLevelDB = "leveldb"
)

// Config contains the settings of an on-disk store.
type Config struct {
	Engine   string // pebble or leveldb
	Cache    int    // megabytes of database cache
	Handles  int    // open file handles
	ReadOnly bool
}

// DefaultConfig is used by Open when a field is left zero.
var DefaultConfig = Config{
	Engine:  EnginePebble,
	Cache:   512,
	Handles: 256,
}

// Store is the versioned state store. It is used from a single goroutine.
type Store struct {
	db     ethdb.Database
	triedb *triedb.Database
	sdb    *state.CachingDB

	// current scope
	scopeNumber uint64
	scopeID     common.Hash
	scopeHeader *types.Header

	stats struct {
		commits    int
		finalized  int
		discarded  int
		commitTime time.Duration
	}
}

// Open opens an on-disk store at path.
func Open(path string, config Config) (*Store, error) {
	if config.Engine == "" {
		config.Engine = DefaultConfig.Engine
	}
	if config.Cache <= 0 {
		config.Cache = DefaultConfig.Cache
	}
	if config.Handles <= 0 {
		config.Handles = DefaultConfig.Handles
	}
	var (
		kvdb ethdb.KeyValueStore
		err  error
	)
	switch config.Engine {
	case EnginePebble:
		kvdb, err = pebble.New(path, config.Cache, config.Handles, "monad/db/", config.ReadOnly)
	case EngineLevelDB:
		kvdb, err = leveldb.New(path, config.Cache, config.Handles, "monad/db/", config.ReadOnly)
	default:
		return nil, fmt.Errorf("unknown database engine %q", config.Engine)
	}
	if err != nil {
		return nil, err
	}
	log.Info("Opened state store", "path", path, "engine", config.Engine, "cache", config.Cache, "handles", config.Handles, "readonly", config.ReadOnly)
	return newStore(rawdb.NewDatabase(kvdb)), nil
}

// NewMemory creates a store backed by an in-memory database.
func NewMemory() *Store {
	return newStore(rawdb.NewMemoryDatabase())
}

func newStore(db ethdb.Database) *Store {
	tdb := triedb.NewDatabase(db, triedb.HashDefaults)
	return &Store{
		db:     db,
		triedb: tdb,
		sdb:    state.NewDatabase(tdb, nil),
	}
}

// DB returns the underlying key-value database.
func (s *Store) DB() ethdb.Database { return s.db }

// SetBlockAndPrefix scopes subsequent reads to block number with the given
// id. The zero id selects the finalized block at that height.
func (s *Store) SetBlockAndPrefix(number uint64, id common.Hash) {
	s.scopeNumber, s.scopeID, s.scopeHeader = number, id, nil
}

// ReadEthHeader returns the header of the block in scope.
func (s *Store) ReadEthHeader() (*types.Header, error) {
	if s.scopeHeader != nil {
		return s.scopeHeader, nil
	}
	header, err := s.readHeader(s.scopeNumber, s.scopeID)
	if err != nil {
		return nil, err
	}
	s.scopeHeader = header
	return header, nil
}

func (s *Store) readHeader(number uint64, id common.Hash) (*types.Header, error) {
	if id != (common.Hash{}) {
		if blob, _ := s.db.Get(proposalKey(number, id, kindHeader)); len(blob) > 0 {
			header := new(types.Header)
			if err := rlp.DecodeBytes(blob, header); err != nil {
				return nil, fmt.Errorf("proposal %d/%x header: %w", number, id[:4], err)
			}
			return header, nil
		}
		if s.finalizedID(number) != id {
			return nil, fmt.Errorf("%w: %d/%x", ErrUnknownBlock, number, id[:4])
		}
	}
	return s.ReadCanonicalHeader(number)
}

// ReadCanonicalHeader returns the finalized header at number.
func (s *Store) ReadCanonicalHeader(number uint64) (*types.Header, error) {
	hash := rawdb.ReadCanonicalHash(s.db, number)
	if hash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: no canonical block %d", ErrUnknownBlock, number)
	}
	header := rawdb.ReadHeader(s.db, hash, number)
	if header == nil {
		return nil, fmt.Errorf("%w: missing header %d [%x]", ErrUnknownBlock, number, hash[:4])
	}
	return header, nil
}

func (s *Store) finalizedID(number uint64) common.Hash {
	blob, _ := s.db.Get(blockIDKey(number))
	return common.BytesToHash(blob)
}

// NewBlockState creates a state overlay on top of the state of the block in
// scope.
func (s *Store) NewBlockState() (*state.StateDB, error) {
	header, err := s.ReadEthHeader()
	if err != nil {
		return nil, err
	}
	return state.New(header.Root, s.sdb)
}

// HasProposal reports whether an executed but not finalized block is stored.
func (s *Store) HasProposal(number uint64, id common.Hash) bool {
	ok, _ := s.db.Has(proposalKey(number, id, kindHeader))
	return ok
}

// Commit writes the overlay and the block data as proposal (number, id) on
// top of the block in scope. The header fields derived from execution are
// recomputed; everything else is taken from header. On success the new
// proposal becomes the scope.
func (s *Store) Commit(overlay *state.StateDB, id common.Hash, header *types.Header, receipts types.Receipts, frames [][]trace.CallFrame, senders []common.Address, txs types.Transactions, ommers []*types.Header, withdrawals types.Withdrawals) error {
	start := time.Now()

	parent, err := s.ReadEthHeader()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoScope, err)
	}
	number := header.Number.Uint64()
	if parent.Number.Uint64()+1 != number {
		return fmt.Errorf("commit of block %d on top of %d", number, parent.Number.Uint64())
	}
	root, err := overlay.Commit(number, true, false)
	if err != nil {
		return fmt.Errorf("state commit: %w", err)
	}
	out := types.CopyHeader(header)
	out.Root = root
	out.TxHash = types.DeriveSha(txs, trie.NewStackTrie(nil))
	out.ReceiptHash = types.DeriveSha(receipts, trie.NewStackTrie(nil))
	out.Bloom = types.CreateBloom(receipts)
	out.UncleHash = types.CalcUncleHash(ommers)
	out.GasUsed = 0
	if len(receipts) > 0 {
		out.GasUsed = receipts[len(receipts)-1].CumulativeGasUsed
	}
	withdrawalsHash := types.DeriveSha(withdrawals, trie.NewStackTrie(nil))
	out.WithdrawalsHash = &withdrawalsHash

	batch := s.db.NewBatch()
	if err := writeProposal(batch, number, id, out, &types.Body{Transactions: txs, Uncles: ommers, Withdrawals: withdrawals}, receipts, frames, senders); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.scopeNumber, s.scopeID, s.scopeHeader = number, id, out

	s.stats.commits++
	s.stats.commitTime += time.Since(start)
	commitTimer.UpdateSince(start)
	log.Debug("Committed block state", "number", number, "id", id, "root", root, "txs", len(txs), "gas", out.GasUsed, "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

func writeProposal(w ethdb.KeyValueWriter, number uint64, id common.Hash, header *types.Header, body *types.Body, receipts types.Receipts, frames [][]trace.CallFrame, senders []common.Address) error {
	storage := make([]*types.ReceiptForStorage, len(receipts))
	for i, receipt := range receipts {
		storage[i] = (*types.ReceiptForStorage)(receipt)
	}
	records := []struct {
		kind byte
		val  interface{}
	}{
		{kindHeader, header},
		{kindBody, body},
		{kindReceipts, storage},
		{kindFrames, frames},
		{kindSenders, senders},
	}
	for _, rec := range records {
		enc, err := rlp.EncodeToBytes(rec.val)
		if err != nil {
			return fmt.Errorf("encode proposal %c: %w", rec.kind, err)
		}
		if err := w.Put(proposalKey(number, id, rec.kind), enc); err != nil {
			return err
		}
	}
	return nil
}

type proposal struct {
	header   *types.Header
	body     types.Body
	receipts types.Receipts
	frames   rlp.RawValue
	senders  rlp.RawValue
}

func (s *Store) readProposal(number uint64, id common.Hash) (*proposal, error) {
	p := new(proposal)
	blob, err := s.db.Get(proposalKey(number, id, kindHeader))
	if err != nil || len(blob) == 0 {
		return nil, fmt.Errorf("%w: no proposal %d/%x", ErrUnknownBlock, number, id[:4])
	}
	p.header = new(types.Header)
	if err := rlp.DecodeBytes(blob, p.header); err != nil {
		return nil, err
	}
	if blob, err = s.db.Get(proposalKey(number, id, kindBody)); err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(blob, &p.body); err != nil {
		return nil, err
	}
	if blob, err = s.db.Get(proposalKey(number, id, kindReceipts)); err != nil {
		return nil, err
	}
	var storage []*types.ReceiptForStorage
	if err := rlp.DecodeBytes(blob, &storage); err != nil {
		return nil, err
	}
	p.receipts = make(types.Receipts, len(storage))
	for i, receipt := range storage {
		p.receipts[i] = (*types.Receipt)(receipt)
	}
	if p.frames, err = s.db.Get(proposalKey(number, id, kindFrames)); err != nil {
		return nil, err
	}
	if p.senders, err = s.db.Get(proposalKey(number, id, kindSenders)); err != nil {
		return nil, err
	}
	return p, nil
}

// Finalize makes proposal (number, id) canonical: chain data is written with
// the rawdb schema, the state trie is flushed and the finalized watermark is
// advanced. Competing proposals at the same height are discarded.
func (s *Store) Finalize(number uint64, id common.Hash) error {
	start := time.Now()
	if last, ok := s.LatestFinalized(); ok && number != last+1 {
		return fmt.Errorf("%w: have %d, finalizing %d", ErrFinalizeOrder, last, number)
	}
	p, err := s.readProposal(number, id)
	if err != nil {
		return err
	}
	if err := s.triedb.Commit(p.header.Root, false); err != nil {
		return fmt.Errorf("trie flush: %w", err)
	}
	hash := p.header.Hash()

	batch := s.db.NewBatch()
	rawdb.WriteHeader(batch, p.header)
	rawdb.WriteBody(batch, hash, number, &p.body)
	rawdb.WriteReceipts(batch, hash, number, p.receipts)
	rawdb.WriteCanonicalHash(batch, hash, number)
	rawdb.WriteHeadHeaderHash(batch, hash)
	rawdb.WriteHeadBlockHash(batch, hash)
	rawdb.WriteFinalizedBlockHash(batch, hash)
	if err := batch.Put(callFrameKey(number, hash), p.frames); err != nil {
		return err
	}
	if err := batch.Put(senderKey(number, hash), p.senders); err != nil {
		return err
	}
	if err := batch.Put(blockIDKey(number), id.Bytes()); err != nil {
		return err
	}
	if err := batch.Put(finalizedKey, encodeBlockNumber(number)); err != nil {
		return err
	}
	discarded, err := s.deleteProposals(batch, number)
	if err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.stats.finalized++
	s.stats.discarded += discarded - 1
	finalizedGauge.Update(int64(number))
	finalizeTimer.UpdateSince(start)
	return nil
}

// deleteProposals removes every proposal at number and returns how many
// distinct proposals were found.
func (s *Store) deleteProposals(batch ethdb.Batch, number uint64) (int, error) {
	prefix := append(append([]byte{}, proposalPrefix...), encodeBlockNumber(number)...)
	it := s.db.NewIterator(prefix, nil)
	defer it.Release()

	count := 0
	for it.Next() {
		key := it.Key()
		if key[len(key)-1] == kindHeader {
			count++
		}
		if err := batch.Delete(common.CopyBytes(key)); err != nil {
			return 0, err
		}
	}
	return count, it.Error()
}

// UpdateVerifiedBlock advances the verified watermark.
func (s *Store) UpdateVerifiedBlock(number uint64) error {
	if err := s.db.Put(verifiedKey, encodeBlockNumber(number)); err != nil {
		return err
	}
	verifiedGauge.Update(int64(number))
	return nil
}

// LatestFinalized returns the latest finalized block number, if any.
func (s *Store) LatestFinalized() (uint64, bool) {
	return s.readWatermark(finalizedKey)
}

// LatestVerified returns the latest verified block number, if any.
func (s *Store) LatestVerified() (uint64, bool) {
	return s.readWatermark(verifiedKey)
}

func (s *Store) readWatermark(key []byte) (uint64, bool) {
	blob, err := s.db.Get(key)
	if err != nil || len(blob) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(blob), true
}

// ReadCallFrames returns the call frames recorded for a finalized block.
func (s *Store) ReadCallFrames(number uint64) ([][]trace.CallFrame, error) {
	header, err := s.ReadCanonicalHeader(number)
	if err != nil {
		return nil, err
	}
	blob, err := s.db.Get(callFrameKey(number, header.Hash()))
	if err != nil {
		return nil, err
	}
	var frames [][]trace.CallFrame
	if err := rlp.DecodeBytes(blob, &frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// ReadSenders returns the recovered senders of a finalized block.
func (s *Store) ReadSenders(number uint64) ([]common.Address, error) {
	header, err := s.ReadCanonicalHeader(number)
	if err != nil {
		return nil, err
	}
	blob, err := s.db.Get(senderKey(number, header.Hash()))
	if err != nil {
		return nil, err
	}
	var senders []common.Address
	if err := rlp.DecodeBytes(blob, &senders); err != nil {
		return nil, err
	}
	return senders, nil
}

// PrintStats returns a one-line summary of store activity.
func (s *Store) PrintStats() string {
	avg := time.Duration(0)
	if s.stats.commits > 0 {
		avg = s.stats.commitTime / time.Duration(s.stats.commits)
	}
	return fmt.Sprintf("commits=%d finalized=%d discarded=%d avgcommit=%v", s.stats.commits, s.stats.finalized, s.stats.discarded, common.PrettyDuration(avg))
}

// Close flushes and closes the databases.
func (s *Store) Close() error {
	if err := s.triedb.Close(); err != nil {
		log.Error("Failed to close trie database", "err", err)
	}
	return s.db.Close()
}
