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

// Package event implements the execution event ring: a memory mapped file
// other processes read block lifecycle events from while the node writes
// them.
package event

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

const (
	// DefaultDescriptorsShift sizes the descriptor array to 1<<20 entries.
	DefaultDescriptorsShift = 20

	// DefaultPayloadBufShift sizes the payload buffer to 256 MiB.
	DefaultPayloadBufShift = 28

	minDescriptorsShift = 4
	maxDescriptorsShift = 32
	minPayloadBufShift  = 12
	maxPayloadBufShift  = 40
)

// DefaultRingDir is where rings named without a directory are created.
// It lives on hugetlbfs when the host has one mounted.
var DefaultRingDir = "/dev/hugepages/event-rings"

// RingConfig describes the event ring to create.
type RingConfig struct {
	// Path is a ring file name or path. A name without a '/' is resolved
	// against the default ring directory.
	Path string

	DescriptorsShift uint8
	PayloadBufShift  uint8
}

// ParseRingConfig parses a ring specification of the form
//
//	<ring-name-or-path>[:<descriptor-shift>:<payload-buffer-shift>]
//
// An empty shift, as in "ring::30", selects the default.
func ParseRingConfig(s string) (RingConfig, error) {
	tokens := strings.Split(s, ":")
	if len(tokens) > 3 || tokens[0] == "" {
		return RingConfig{}, fmt.Errorf("input `%s` does not have expected format <ring-name-or-path>[:<descriptor-shift>:<payload-buffer-shift>]", s)
	}
	cfg := RingConfig{
		Path:             tokens[0],
		DescriptorsShift: DefaultDescriptorsShift,
		PayloadBufShift:  DefaultPayloadBufShift,
	}
	if len(tokens) > 1 && tokens[1] != "" {
		shift, err := parseShift(tokens[1], minDescriptorsShift, maxDescriptorsShift)
		if err != nil {
			return RingConfig{}, fmt.Errorf("parse error in ring_shift `%s`: %w", tokens[1], err)
		}
		cfg.DescriptorsShift = shift
	}
	if len(tokens) > 2 && tokens[2] != "" {
		shift, err := parseShift(tokens[2], minPayloadBufShift, maxPayloadBufShift)
		if err != nil {
			return RingConfig{}, fmt.Errorf("parse error in payload_buffer_shift `%s`: %w", tokens[2], err)
		}
		cfg.PayloadBufShift = shift
	}
	return cfg, nil
}

func parseShift(s string, min, max uint64) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%d outside [%d, %d]", v, min, max)
	}
	return uint8(v), nil
}

// String returns the specification the config was parsed from.
func (c RingConfig) String() string {
	return fmt.Sprintf("%s:%d:%d", c.Path, c.DescriptorsShift, c.PayloadBufShift)
}

// ResolvePath returns the absolute path of the ring file, creating the
// default ring directory if needed. When it cannot be created the rings go
// to the temporary directory instead.
func (c RingConfig) ResolvePath() (string, error) {
	if strings.ContainsRune(c.Path, '/') {
		return filepath.Abs(c.Path)
	}
	dir := DefaultRingDir
	if err := os.MkdirAll(dir, 0775); err != nil {
		fallback := filepath.Join(os.TempDir(), "event-rings")
		log.Warn("Default event ring directory unavailable", "dir", dir, "fallback", fallback, "err", err)
		if err := os.MkdirAll(fallback, 0775); err != nil {
			return "", err
		}
		dir = fallback
	}
	return filepath.Join(dir, c.Path), nil
}
