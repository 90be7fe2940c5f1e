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

// Package debug wires logging and Go runtime profiling to the command line.
package debug

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// profiler owns the profiles that stay open for the lifetime of the process
// and are written out on Exit.
type profiler struct {
	mu       sync.Mutex
	cpuW     *os.File
	traceW   *os.File
	heapFile string
}

var profiles = new(profiler)

func (p *profiler) startCPUProfile(file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cpuW != nil {
		return errors.New("CPU profiling already in progress")
	}
	f, err := os.Create(filepath.Clean(file))
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	p.cpuW = f
	log.Info("CPU profiling started", "dump", file)
	return nil
}

func (p *profiler) startGoTrace(file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.traceW != nil {
		return errors.New("trace already in progress")
	}
	f, err := os.Create(filepath.Clean(file))
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	p.traceW = f
	log.Info("Go tracing started", "dump", file)
	return nil
}

// stop flushes every running profile.
func (p *profiler) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cpuW != nil {
		pprof.StopCPUProfile()
		log.Info("Done writing CPU profile", "dump", p.cpuW.Name())
		p.cpuW.Close()
		p.cpuW = nil
	}
	if p.traceW != nil {
		trace.Stop()
		log.Info("Done writing Go trace", "dump", p.traceW.Name())
		p.traceW.Close()
		p.traceW = nil
	}
	if p.heapFile != "" {
		if err := writeHeapProfile(p.heapFile); err != nil {
			log.Error("Failed to write heap profile", "dump", p.heapFile, "err", err)
		}
		p.heapFile = ""
	}
}

func writeHeapProfile(file string) error {
	f, err := os.Create(filepath.Clean(file))
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	log.Info("Writing heap profile", "dump", file)
	return pprof.Lookup("heap").WriteTo(f, 0)
}
