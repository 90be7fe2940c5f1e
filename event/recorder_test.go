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

package event

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRoundTrip(t *testing.T) {
	ring, err := NewMemoryRing(6, 16)
	require.NoError(t, err)
	rec := NewRecorder(ring)
	defer rec.Close()

	events := make(chan *Event, 8)
	sub := rec.SubscribeBlockEvents(events)
	defer sub.Unsubscribe()

	header := &types.Header{
		Number:     big.NewInt(7),
		ParentHash: common.Hash{6},
		Root:       common.Hash{0xaa},
		GasLimit:   30_000_000,
		GasUsed:    21000,
		BaseFee:    big.NewInt(1),
		Difficulty: new(big.Int),
	}
	id := common.BigToHash(big.NewInt(7))
	rec.BlockStart(7, id, header, 1)
	rec.BlockEnd(7, header, 21000)
	rec.BlockFinalized(7, id)
	rec.BlockVerified(7)
	rec.BlockReject(8, errors.New("invalid gas used"))
	require.Equal(t, uint64(5), ring.Last())

	want := []Type{TypeBlockStart, TypeBlockEnd, TypeBlockFinalized, TypeBlockVerified, TypeBlockReject}
	for i, typ := range want {
		raw, err := ring.Read(uint64(i + 1))
		require.NoError(t, err)
		ev, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, typ, ev.Type)

		fed := <-events
		assert.Equal(t, ev.Seq, fed.Seq)
		assert.Equal(t, typ, fed.Type)
	}
	raw, _ := ring.Read(1)
	ev, _ := Decode(raw)
	start := ev.Data.(*BlockStart)
	assert.Equal(t, uint64(7), start.Number)
	assert.Equal(t, id, start.ID)
	assert.Equal(t, header.Hash(), start.Header.Hash())
	assert.Equal(t, uint64(1), start.Txs)

	raw, _ = ring.Read(2)
	ev, _ = Decode(raw)
	assert.Equal(t, &BlockEnd{Number: 7, Hash: header.Hash(), StateRoot: header.Root, ReceiptsRoot: header.ReceiptHash, GasUsed: 21000}, ev.Data)

	raw, _ = ring.Read(5)
	ev, _ = Decode(raw)
	assert.Equal(t, &BlockReject{Number: 8, Reason: "invalid gas used"}, ev.Data)
	assert.Equal(t, "BLOCK_REJECT", ev.Type.String())
}

func TestRecorderDropsOversizedEvents(t *testing.T) {
	ring, err := NewMemoryRing(4, 12)
	require.NoError(t, err)
	rec := NewRecorder(ring)

	header := &types.Header{Number: big.NewInt(1), Difficulty: new(big.Int), Extra: make([]byte, 5000)}
	rec.BlockStart(1, common.Hash{}, header, 0)
	assert.Equal(t, uint64(0), ring.Last())

	rec.BlockVerified(1)
	assert.Equal(t, uint64(1), ring.Last())

	_, err = Decode(&RawEvent{Seq: 1, Type: Type(99)})
	assert.Error(t, err)
	assert.Equal(t, "UNKNOWN(99)", Type(99).String())
}

func TestRecorderSkipsFullSubscribers(t *testing.T) {
	ring, err := NewMemoryRing(6, 16)
	require.NoError(t, err)
	rec := NewRecorder(ring)
	defer rec.Close()

	stalled := make(chan *Event, 1)
	sub := rec.SubscribeBlockEvents(stalled)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for n := uint64(1); n <= 50; n++ {
			rec.BlockVerified(n)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recorder blocked on a subscriber that does not read")
	}
	assert.Equal(t, uint64(50), ring.Last())

	// The one buffered event is the first one; the rest were skipped.
	first := <-stalled
	assert.Equal(t, uint64(1), first.Seq)
	select {
	case ev := <-stalled:
		assert.Greater(t, ev.Seq, uint64(1))
	case <-time.After(50 * time.Millisecond):
	}
}
