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

// Package workerpool runs data-parallel loops on a bounded number of
// goroutines.
package workerpool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool is a parallel for-each with a fixed concurrency bound. It holds no
// goroutines between calls and may be shared by several callers.
type Pool struct {
	threads int
}

// New creates a pool running at most threads tasks at once. Zero or less
// means one per CPU.
func New(threads int) *Pool {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Pool{threads: threads}
}

// Threads returns the concurrency bound.
func (p *Pool) Threads() int {
	return p.threads
}

// ForEach calls fn for every index in [0, n) and returns once all calls are
// done. Calls run concurrently in no particular order, so fn must only write
// to state owned by its index.
//
// Indices are striped across the tasks: task i handles i, i+tasks, ...,
// which keeps the early indices finishing first.
func (p *Pool) ForEach(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	tasks := p.threads
	if n < tasks*4 {
		tasks = (n + 3) / 4
	}
	if tasks == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(p.threads)
	for t := 0; t < tasks; t++ {
		g.Go(func() error {
			for i := t; i < n; i += tasks {
				fn(i)
			}
			return nil
		})
	}
	g.Wait()
}

// Go runs fn for every index in [0, n), one task per index, and returns the
// first error any of them reported. Every task runs regardless of failures
// elsewhere.
func (p *Pool) Go(n int, fn func(i int) error) error {
	var g errgroup.Group
	g.SetLimit(p.threads)
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
