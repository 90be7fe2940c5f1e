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

// Package trace implements the per-transaction call and state collectors
// attached to the EVM while a block executes.
package trace

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Call frame outcomes.
const (
	FrameSuccess uint8 = iota
	FrameRevert
	FrameError
)

// CallFrame is one message call of a transaction. Frames of a transaction
// are stored flat, in the order the calls were entered; Depth restores the
// tree.
type CallFrame struct {
	Type    vm.OpCode
	From    common.Address
	To      common.Address
	Value   *big.Int
	Gas     uint64
	GasUsed uint64
	Input   []byte
	Output  []byte
	Status  uint8
	Error   string
	Depth   uint64
}

// CallTracer collects the call frames of a single transaction.
type CallTracer interface {
	// Hooks returns the EVM hooks feeding the tracer, nil for a no-op tracer.
	Hooks() *tracing.Hooks

	// Frames returns the frames collected so far.
	Frames() []CallFrame
}

// NoopCallTracer discards everything.
type NoopCallTracer struct{}

func (NoopCallTracer) Hooks() *tracing.Hooks { return nil }
func (NoopCallTracer) Frames() []CallFrame   { return nil }

type callTracer struct {
	frames []CallFrame
	stack  []int
}

// NewCallTracer creates a recording call tracer.
func NewCallTracer() CallTracer {
	return new(callTracer)
}

func (t *callTracer) Hooks() *tracing.Hooks {
	return &tracing.Hooks{
		OnTxStart: t.onTxStart,
		OnEnter:   t.onEnter,
		OnExit:    t.onExit,
	}
}

func (t *callTracer) Frames() []CallFrame {
	return t.frames
}

func (t *callTracer) onTxStart(_ *tracing.VMContext, _ *types.Transaction, _ common.Address) {
	t.frames = t.frames[:0]
	t.stack = t.stack[:0]
}

func (t *callTracer) onEnter(depth int, typ byte, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
	frame := CallFrame{
		Type:  vm.OpCode(typ),
		From:  from,
		To:    to,
		Gas:   gas,
		Input: common.CopyBytes(input),
		Depth: uint64(depth),
	}
	if value != nil {
		frame.Value = new(big.Int).Set(value)
	}
	t.stack = append(t.stack, len(t.frames))
	t.frames = append(t.frames, frame)
}

func (t *callTracer) onExit(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
	if len(t.stack) == 0 {
		return
	}
	idx := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]

	frame := &t.frames[idx]
	frame.GasUsed = gasUsed
	frame.Output = common.CopyBytes(output)
	switch {
	case err == nil:
		frame.Status = FrameSuccess
	case reverted && errors.Is(err, vm.ErrExecutionReverted):
		frame.Status = FrameRevert
		frame.Error = err.Error()
	default:
		frame.Status = FrameError
		frame.Error = err.Error()
	}
}
