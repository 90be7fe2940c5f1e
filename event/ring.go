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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"
)

// The ring file starts with a header page, followed by the descriptor array
// and the payload buffer. Integers are little endian; the fields written
// with atomic stores are 8 byte aligned.
//
//	header:     magic | version | shifts | writer pid | content type | last seq | payload pos
//	descriptor: seq | type | payload len | payload pos | unix nanos
const (
	headerSize     = 4096
	descriptorSize = 32
	ringVersion    = 1

	offMagic        = 0
	offVersion      = 8
	offDescShift    = 12
	offPayloadShift = 13
	offWriterPID    = 16
	offContentType  = 24
	offLastSeq      = 32
	offPayloadPos   = 40

	descOffSeq     = 0
	descOffType    = 8
	descOffLen     = 12
	descOffPos     = 16
	descOffTime    = 24
	contentTypeExe = 1
)

var ringMagic = [8]byte{'M', 'O', 'N', 'A', 'D', 'E', 'V', 'R'}

var (
	// ErrNotRing is returned when a file does not hold an event ring.
	ErrNotRing = errors.New("not an event ring file")

	// ErrEventExpired is returned for events overwritten by newer ones.
	ErrEventExpired = errors.New("event expired")

	// ErrEventPending is returned for events not yet written.
	ErrEventPending = errors.New("event not yet written")

	// ErrPayloadTooLarge is returned for payloads larger than the buffer.
	ErrPayloadTooLarge = errors.New("event payload larger than ring buffer")
)

// RawEvent is one event read back from a ring.
type RawEvent struct {
	Seq     uint64
	Type    Type
	Time    time.Time
	Payload []byte
}

// ring is the in-memory view of a mapped ring file. Writes must come from a
// single goroutine; reads may be concurrent with it.
type ring struct {
	data     []byte
	descs    []byte
	buf      []byte
	descMask uint64
	bufMask  uint64
}

// ringSize returns the file size of a ring with the given shifts.
func ringSize(descShift, payloadShift uint8) int {
	return headerSize + descriptorSize<<descShift + 1<<payloadShift
}

// initRing writes a fresh header into data.
func initRing(data []byte, descShift, payloadShift uint8, pid int) (*ring, error) {
	if len(data) < ringSize(descShift, payloadShift) {
		return nil, fmt.Errorf("ring mapping has %d bytes, want %d", len(data), ringSize(descShift, payloadShift))
	}
	copy(data[offMagic:], ringMagic[:])
	binary.LittleEndian.PutUint32(data[offVersion:], ringVersion)
	data[offDescShift] = descShift
	data[offPayloadShift] = payloadShift
	binary.LittleEndian.PutUint32(data[offWriterPID:], uint32(pid))
	binary.LittleEndian.PutUint16(data[offContentType:], contentTypeExe)
	return newRing(data)
}

// newRing checks the header of data and returns the view on it.
func newRing(data []byte) (*ring, error) {
	if len(data) < headerSize || !bytes.Equal(data[offMagic:offMagic+8], ringMagic[:]) {
		return nil, ErrNotRing
	}
	if v := binary.LittleEndian.Uint32(data[offVersion:]); v != ringVersion {
		return nil, fmt.Errorf("%w: version %d", ErrNotRing, v)
	}
	var (
		descShift    = data[offDescShift]
		payloadShift = data[offPayloadShift]
	)
	// The file may be padded up to the page size of its file system.
	size := ringSize(descShift, payloadShift)
	if len(data) < size {
		return nil, fmt.Errorf("%w: size %d too small for shifts %d/%d", ErrNotRing, len(data), descShift, payloadShift)
	}
	descEnd := headerSize + descriptorSize<<descShift
	return &ring{
		data:     data,
		descs:    data[headerSize:descEnd],
		buf:      data[descEnd:size],
		descMask: 1<<descShift - 1,
		bufMask:  1<<payloadShift - 1,
	}, nil
}

func word(b []byte, off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b[off]))
}

// writerPID returns the pid recorded by the process that created the ring.
func (r *ring) writerPID() int {
	return int(binary.LittleEndian.Uint32(r.data[offWriterPID:]))
}

// last returns the sequence number of the newest event, zero if none.
func (r *ring) last() uint64 {
	return atomic.LoadUint64(word(r.data, offLastSeq))
}

// write appends an event and returns its sequence number.
func (r *ring) write(typ Type, payload []byte, now time.Time) (uint64, error) {
	if uint64(len(payload)) > r.bufMask+1 {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	var (
		seq  = r.last() + 1
		pos  = atomic.LoadUint64(word(r.data, offPayloadPos))
		desc = r.descs[(seq&r.descMask)*descriptorSize:][:descriptorSize]
	)
	// Readers of the slot see it as unpublished until the final store.
	atomic.StoreUint64(word(desc, descOffSeq), 0)

	start := pos & r.bufMask
	n := copy(r.buf[start:], payload)
	copy(r.buf, payload[n:])
	atomic.StoreUint64(word(r.data, offPayloadPos), pos+uint64(len(payload)))

	binary.LittleEndian.PutUint16(desc[descOffType:], uint16(typ))
	binary.LittleEndian.PutUint32(desc[descOffLen:], uint32(len(payload)))
	binary.LittleEndian.PutUint64(desc[descOffPos:], pos)
	binary.LittleEndian.PutUint64(desc[descOffTime:], uint64(now.UnixNano()))
	atomic.StoreUint64(word(desc, descOffSeq), seq)
	atomic.StoreUint64(word(r.data, offLastSeq), seq)
	return seq, nil
}

// read returns the event with sequence number seq.
func (r *ring) read(seq uint64) (*RawEvent, error) {
	last := r.last()
	switch {
	case seq == 0 || seq > last:
		return nil, ErrEventPending
	case last-seq > r.descMask:
		return nil, ErrEventExpired
	}
	desc := r.descs[(seq&r.descMask)*descriptorSize:][:descriptorSize]
	if atomic.LoadUint64(word(desc, descOffSeq)) != seq {
		return nil, ErrEventExpired
	}
	var (
		typ    = Type(binary.LittleEndian.Uint16(desc[descOffType:]))
		length = uint64(binary.LittleEndian.Uint32(desc[descOffLen:]))
		pos    = binary.LittleEndian.Uint64(desc[descOffPos:])
		nanos  = int64(binary.LittleEndian.Uint64(desc[descOffTime:]))
	)
	payload := make([]byte, length)
	start := pos & r.bufMask
	n := copy(payload, r.buf[start:])
	copy(payload[n:], r.buf)

	// The payload may have been overwritten while it was copied.
	if atomic.LoadUint64(word(r.data, offPayloadPos))-pos > r.bufMask+1 || atomic.LoadUint64(word(desc, descOffSeq)) != seq {
		return nil, ErrEventExpired
	}
	return &RawEvent{Seq: seq, Type: typ, Time: time.Unix(0, nanos), Payload: payload}, nil
}

// Ring is an event ring mapped into this process. Only the process that
// created it may write.
type Ring struct {
	r      *ring
	path   string
	owned  bool
	closer func() error
}

// NewMemoryRing returns a writable ring backed by process memory, for
// consumers living in the same process.
func NewMemoryRing(descShift, payloadShift uint8) (*Ring, error) {
	data := make([]byte, ringSize(descShift, payloadShift))
	r, err := initRing(data, descShift, payloadShift, 0)
	if err != nil {
		return nil, err
	}
	return &Ring{r: r, owned: true}, nil
}

// Path returns the ring file path, empty for memory rings.
func (r *Ring) Path() string {
	return r.path
}

// Last returns the sequence number of the newest event, zero if none.
func (r *Ring) Last() uint64 {
	return r.r.last()
}

// Write appends an event of the given type and returns its sequence number.
func (r *Ring) Write(typ Type, payload []byte) (uint64, error) {
	if !r.owned {
		return 0, errors.New("event ring opened read-only")
	}
	return r.r.write(typ, payload, time.Now())
}

// Read returns the event with sequence number seq.
func (r *Ring) Read(seq uint64) (*RawEvent, error) {
	return r.r.read(seq)
}

// Close unmaps the ring and releases its file. The file itself stays behind
// for readers.
func (r *Ring) Close() error {
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	return closer()
}
