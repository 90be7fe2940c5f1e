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

package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	for _, threads := range []int{1, 2, 7} {
		for _, n := range []int{0, 1, 3, 4, 5, 31, 1000} {
			p := New(threads)
			hits := make([]int32, n)
			p.ForEach(n, func(i int) { atomic.AddInt32(&hits[i], 1) })
			for i, h := range hits {
				assert.Equal(t, int32(1), h, "threads %d n %d index %d", threads, n, i)
			}
		}
	}
}

func TestForEachConcurrencyBound(t *testing.T) {
	p := New(3)
	var cur, peak atomic.Int32
	p.ForEach(300, func(i int) {
		c := cur.Add(1)
		for {
			old := peak.Load()
			if c <= old || peak.CompareAndSwap(old, c) {
				break
			}
		}
		cur.Add(-1)
	})
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestGoReturnsFirstError(t *testing.T) {
	p := New(4)
	boom := errors.New("boom")
	err := p.Go(10, func(i int) error {
		if i == 6 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, p.Go(10, func(int) error { return nil }))
}

func TestNewDefaultsToCPUCount(t *testing.T) {
	assert.Greater(t, New(0).Threads(), 0)
	assert.Equal(t, 5, New(5).Threads())
}
