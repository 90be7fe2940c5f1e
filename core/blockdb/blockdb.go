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

// Package blockdb implements the sequential block archive: one file per
// block, named by its decimal number, holding the snappy compressed RLP
// encoding of the block.
package blockdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
)

// ErrNotFound is returned when the archive holds no block at a height.
var ErrNotFound = errors.New("block not found in archive")

var (
	readMeter     = metrics.NewRegisteredMeter("monad/blockdb/read", nil)
	cacheHitMeter = metrics.NewRegisteredMeter("monad/blockdb/cache/hit", nil)
	writeMeter    = metrics.NewRegisteredMeter("monad/blockdb/write", nil)
)

// readAhead is the number of heights loaded into the cache past the last
// block read.
const readAhead = 16

// Archive is a directory of block files. With a cache, reading block n
// loads the compressed blobs of the following heights in the background, so
// a sequential reader mostly hits memory.
type Archive struct {
	dir   string
	cache *fastcache.Cache

	ahead     chan uint64
	loaded    atomic.Uint64 // highest height loaded ahead
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open opens the archive rooted at dir, creating the directory if needed.
// cacheMB of zero disables the read cache and read-ahead.
func Open(dir string, cacheMB int) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	a := &Archive{dir: dir, quit: make(chan struct{})}
	if cacheMB > 0 {
		a.cache = fastcache.New(cacheMB * 1024 * 1024)
		a.ahead = make(chan uint64, 1)
		a.wg.Add(1)
		go a.readAheadLoop()
	}
	log.Debug("Opened block archive", "dir", dir, "cache", cacheMB)
	return a, nil
}

func (a *Archive) path(number uint64) string {
	return filepath.Join(a.dir, strconv.FormatUint(number, 10))
}

func cacheKey(number uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], number)
	return key[:]
}

// cached returns the compressed blob of number if the cache holds it. Blobs
// are stored with SetBig since blocks often exceed 64KB.
func (a *Archive) cached(number uint64) []byte {
	if a.cache == nil {
		return nil
	}
	if blob := a.cache.GetBig(nil, cacheKey(number)); len(blob) > 0 {
		return blob
	}
	return nil
}

func (a *Archive) readFile(number uint64) ([]byte, error) {
	blob, err := os.ReadFile(a.path(number))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	readMeter.Mark(int64(len(blob)))
	return blob, nil
}

// Get reads and decodes the block at number.
func (a *Archive) Get(number uint64) (*types.Block, error) {
	blob := a.cached(number)
	if blob != nil {
		cacheHitMeter.Mark(1)
	} else {
		v, err := a.readFile(number)
		if err != nil {
			return nil, err
		}
		blob = v
	}
	if a.cache != nil {
		select {
		case a.ahead <- number:
		default:
		}
	}
	enc, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("block %d: corrupt archive file: %w", number, err)
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(enc, block); err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	if block.NumberU64() != number {
		return nil, fmt.Errorf("block %d: archive file holds block %d", number, block.NumberU64())
	}
	return block, nil
}

// readAheadLoop loads the heights following each read into the cache. It
// stops at the first height the archive does not hold yet.
func (a *Archive) readAheadLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.quit:
			return
		case number := <-a.ahead:
			from := number + 1
			if loaded := a.loaded.Load(); loaded >= from && loaded <= number+readAhead {
				from = loaded + 1
			}
			for n := from; n <= number+readAhead; n++ {
				blob, err := a.readFile(n)
				if err != nil {
					if !errors.Is(err, ErrNotFound) {
						log.Debug("Archive read-ahead failed", "number", n, "err", err)
					}
					break
				}
				a.cache.SetBig(cacheKey(n), blob)
				a.loaded.Store(n)
			}
		}
	}
}

// Put writes a block. The file appears atomically: it is written under a
// temporary name and renamed into place.
func (a *Archive) Put(block *types.Block) error {
	enc, err := rlp.EncodeToBytes(block)
	if err != nil {
		return err
	}
	blob := snappy.Encode(nil, enc)

	path := a.path(block.NumberU64())
	tmp, err := os.CreateTemp(a.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if a.cache != nil {
		a.cache.Del(cacheKey(block.NumberU64()))
	}
	writeMeter.Mark(int64(len(blob)))
	return nil
}

// Has reports whether the archive holds a block at number.
func (a *Archive) Has(number uint64) bool {
	_, err := os.Stat(a.path(number))
	return err == nil
}

// Close stops read-ahead and releases the read cache.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		close(a.quit)
		a.wg.Wait()
		if a.cache != nil {
			a.cache.Reset()
		}
	})
	return nil
}
