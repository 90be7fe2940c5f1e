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

//go:build !linux

package event

import (
	"errors"
	"runtime"
)

// ErrRingBusy is returned when a live process still owns the ring file.
var ErrRingBusy = errors.New("event ring owned by a running process")

var errUnsupported = errors.New("event ring files are not supported on " + runtime.GOOS)

// CreateOwnedRing is only available on linux.
func CreateOwnedRing(cfg RingConfig) (*Ring, error) {
	return nil, errUnsupported
}

// OpenRing is only available on linux.
func OpenRing(path string) (*Ring, error) {
	return nil, errUnsupported
}
