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

//go:build linux

package event

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOwnedRing(t *testing.T) {
	defer func(old string) { DefaultRingDir = old }(DefaultRingDir)
	DefaultRingDir = t.TempDir()
	cfg := RingConfig{Path: "exec", DescriptorsShift: 4, PayloadBufShift: 12}

	ring, err := CreateOwnedRing(cfg)
	require.NoError(t, err)
	path := filepath.Join(DefaultRingDir, "exec")
	assert.Equal(t, path, ring.Path())
	assert.NoFileExists(t, fmt.Sprintf("%s.%d", path, os.Getpid()))

	_, err = ring.Write(TypeBlockVerified, []byte{1, 2, 3})
	require.NoError(t, err)

	reader, err := OpenRing(path)
	require.NoError(t, err)
	defer reader.Close()
	ev, err := reader.Read(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, ev.Payload)
	_, err = reader.Write(TypeBlockVerified, nil)
	assert.Error(t, err)

	// The writer holds the lock, so the ring cannot be claimed.
	_, err = CreateOwnedRing(cfg)
	assert.ErrorIs(t, err, ErrRingBusy)
	assert.ErrorContains(t, err, fmt.Sprintf("pid %d", os.Getpid()))
	require.NoError(t, ring.Close())

	// Once the writer is gone the file is a zombie and gets replaced.
	ring, err = CreateOwnedRing(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ring.Last())
	require.NoError(t, ring.Close())
}

func TestCreateOwnedRingReplacesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exec")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0664))

	ring, err := CreateOwnedRing(RingConfig{Path: path, DescriptorsShift: 4, PayloadBufShift: 12})
	require.NoError(t, err)
	defer ring.Close()
	assert.Equal(t, os.Getpid(), ringWriterPID(path))

	_, err = OpenRing(filepath.Join(filepath.Dir(path), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
