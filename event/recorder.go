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
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethevent "github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/monadgo/execution/core"
)

var (
	recordedEventsMeter = metrics.NewRegisteredMeter("monad/event/recorded", nil)
	droppedEventsMeter  = metrics.NewRegisteredMeter("monad/event/dropped", nil)
	missedEventsMeter   = metrics.NewRegisteredMeter("monad/event/missed", nil)
)

// relayBuffer is the number of events queued between the recorder and one
// subscriber's relay.
const relayBuffer = 256

// Type identifies the payload of an event.
type Type uint16

const (
	TypeBlockStart Type = iota + 1
	TypeBlockEnd
	TypeBlockFinalized
	TypeBlockVerified
	TypeBlockReject
)

func (t Type) String() string {
	switch t {
	case TypeBlockStart:
		return "BLOCK_START"
	case TypeBlockEnd:
		return "BLOCK_END"
	case TypeBlockFinalized:
		return "BLOCK_FINALIZED"
	case TypeBlockVerified:
		return "BLOCK_VERIFIED"
	case TypeBlockReject:
		return "BLOCK_REJECT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// BlockStart is recorded once a block passed validation and is about to be
// executed.
type BlockStart struct {
	Number uint64
	ID     common.Hash
	Header *types.Header
	Txs    uint64
}

// BlockEnd is recorded once the block state is committed.
type BlockEnd struct {
	Number       uint64
	Hash         common.Hash
	StateRoot    common.Hash
	ReceiptsRoot common.Hash
	GasUsed      uint64
}

// BlockFinalized is recorded when a proposal becomes canonical.
type BlockFinalized struct {
	Number uint64
	ID     common.Hash
}

// BlockVerified is recorded when the verified watermark moves.
type BlockVerified struct {
	Number uint64
}

// BlockReject is recorded for a block that failed any stage.
type BlockReject struct {
	Number uint64
	Reason string
}

// Event is a decoded ring event.
type Event struct {
	Seq  uint64
	Type Type
	Time time.Time
	Data interface{}
}

// Decode decodes the payload of a raw ring event.
func Decode(raw *RawEvent) (*Event, error) {
	var data interface{}
	switch raw.Type {
	case TypeBlockStart:
		data = new(BlockStart)
	case TypeBlockEnd:
		data = new(BlockEnd)
	case TypeBlockFinalized:
		data = new(BlockFinalized)
	case TypeBlockVerified:
		data = new(BlockVerified)
	case TypeBlockReject:
		data = new(BlockReject)
	default:
		return nil, fmt.Errorf("unknown event type %d", raw.Type)
	}
	if err := rlp.DecodeBytes(raw.Payload, data); err != nil {
		return nil, fmt.Errorf("decode %v event %d: %w", raw.Type, raw.Seq, err)
	}
	return &Event{Seq: raw.Seq, Type: raw.Type, Time: raw.Time, Data: data}, nil
}

// Recorder writes block lifecycle events into a ring and fans them out to
// in-process subscribers. It is created once and handed to the pipeline.
type Recorder struct {
	ring   *Ring
	mu     sync.Mutex
	feed   gethevent.Feed
	scope  gethevent.SubscriptionScope
	logger log.Logger
}

var _ core.EventRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing into ring.
func NewRecorder(ring *Ring) *Recorder {
	return &Recorder{ring: ring, logger: log.Root()}
}

// SubscribeBlockEvents delivers recorded events to ch, in order. Delivery
// never waits for the subscriber: events arriving while ch is full are
// skipped, and the ring remains the place to read them back from.
func (r *Recorder) SubscribeBlockEvents(ch chan<- *Event) gethevent.Subscription {
	relay := make(chan *Event, relayBuffer)
	inner := r.feed.Subscribe(relay)
	return r.scope.Track(gethevent.NewSubscription(func(quit <-chan struct{}) error {
		defer inner.Unsubscribe()
		for {
			select {
			case ev := <-relay:
				select {
				case ch <- ev:
				default:
					missedEventsMeter.Mark(1)
				}
			case err := <-inner.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}))
}

// Close ends all subscriptions and releases the ring.
func (r *Recorder) Close() error {
	r.scope.Close()
	return r.ring.Close()
}

func (r *Recorder) record(typ Type, data interface{}) {
	enc, err := rlp.EncodeToBytes(data)
	if err != nil {
		droppedEventsMeter.Mark(1)
		r.logger.Error("Failed to encode execution event", "type", typ, "err", err)
		return
	}
	r.mu.Lock()
	seq, err := r.ring.Write(typ, enc)
	r.mu.Unlock()
	if err != nil {
		droppedEventsMeter.Mark(1)
		r.logger.Warn("Failed to record execution event", "type", typ, "err", err)
		return
	}
	recordedEventsMeter.Mark(1)
	r.feed.Send(&Event{Seq: seq, Type: typ, Time: time.Now(), Data: data})
}

func (r *Recorder) BlockStart(number uint64, id common.Hash, header *types.Header, txs int) {
	r.record(TypeBlockStart, &BlockStart{Number: number, ID: id, Header: header, Txs: uint64(txs)})
}

func (r *Recorder) BlockEnd(number uint64, header *types.Header, gasUsed uint64) {
	r.record(TypeBlockEnd, &BlockEnd{
		Number:       number,
		Hash:         header.Hash(),
		StateRoot:    header.Root,
		ReceiptsRoot: header.ReceiptHash,
		GasUsed:      gasUsed,
	})
}

func (r *Recorder) BlockFinalized(number uint64, id common.Hash) {
	r.record(TypeBlockFinalized, &BlockFinalized{Number: number, ID: id})
}

func (r *Recorder) BlockVerified(number uint64) {
	r.record(TypeBlockVerified, &BlockVerified{Number: number})
}

func (r *Recorder) BlockReject(number uint64, reason error) {
	r.record(TypeBlockReject, &BlockReject{Number: number, Reason: reason.Error()})
}
