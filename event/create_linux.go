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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrRingBusy is returned when a live process still owns the ring file.
var ErrRingBusy = errors.New("event ring owned by a running process")

// CreateOwnedRing creates the ring file described by cfg and maps it
// writable. A ring left behind by a crashed writer is replaced; a ring whose
// writer still holds its lock is not.
//
// The file is built under a private name and renamed into place without
// replacing anything, so readers never see a partially initialized ring.
// Interrupts arriving meanwhile are delivered once creation is over.
func CreateOwnedRing(cfg RingConfig) (*Ring, error) {
	path, err := cfg.ResolvePath()
	if err != nil {
		return nil, err
	}
	restore := deferSignals()
	defer restore()

	if err := claimZombie(path); err != nil {
		return nil, err
	}
	initPath := fmt.Sprintf("%s.%d", path, os.Getpid())
	file, err := os.OpenFile(initPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0664)
	if err != nil {
		return nil, fmt.Errorf("create event ring %s: %w", initPath, err)
	}
	lock := flock.New(initPath)
	owned, err := initOwnedRing(file, lock, cfg)
	if err == nil {
		err = unix.Renameat2(unix.AT_FDCWD, initPath, unix.AT_FDCWD, path, unix.RENAME_NOREPLACE)
		if err != nil {
			err = fmt.Errorf("rename %s to %s: %w", initPath, path, err)
		}
	}
	if err != nil {
		if owned != nil {
			owned.Close()
		} else {
			lock.Unlock()
			file.Close()
		}
		os.Remove(initPath)
		return nil, err
	}
	owned.path = path
	log.Info("Execution event ring created", "path", path, "descriptors", uint64(1)<<cfg.DescriptorsShift,
		"payload", uint64(1)<<cfg.PayloadBufShift)
	return owned, nil
}

func initOwnedRing(file *os.File, lock *flock.Flock, cfg RingConfig) (*Ring, error) {
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrRingBusy, file.Name())
	}
	fd := int(file.Fd())

	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		lock.Unlock()
		return nil, err
	}
	if uint32(st.Type) != unix.HUGETLBFS_MAGIC {
		log.Warn("Event ring is not on hugetlbfs", "path", file.Name())
	}
	size := ringSize(cfg.DescriptorsShift, cfg.PayloadBufShift)
	if page := int(st.Bsize); page > 0 && size%page != 0 {
		size += page - size%page
	}
	if err := file.Truncate(int64(size)); err != nil {
		lock.Unlock()
		return nil, err
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("mmap event ring: %w", err)
	}
	r, err := initRing(data, cfg.DescriptorsShift, cfg.PayloadBufShift, os.Getpid())
	if err != nil {
		unix.Munmap(data)
		lock.Unlock()
		return nil, err
	}
	return &Ring{
		r:     r,
		owned: true,
		closer: func() error {
			err := unix.Munmap(data)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if uerr := lock.Unlock(); err == nil {
				err = uerr
			}
			return err
		},
	}, nil
}

// claimZombie removes the ring file at path unless its writer is alive.
func claimZombie(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock event ring %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s is held by pid %d", ErrRingBusy, path, ringWriterPID(path))
	}
	defer lock.Unlock()

	log.Warn("Removing event ring of a dead writer", "path", path, "pid", ringWriterPID(path))
	return os.Remove(path)
}

// ringWriterPID reads the writer pid from a ring header, zero if the file
// is not a ring.
func ringWriterPID(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0
	}
	if !bytes.Equal(header[offMagic:offMagic+8], ringMagic[:]) {
		return 0
	}
	return int(binary.LittleEndian.Uint32(header[offWriterPID:]))
}

// OpenRing maps an existing ring file read-only.
func OpenRing(path string) (*Ring, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap event ring: %w", err)
	}
	r, err := newRing(data)
	if err != nil {
		unix.Munmap(data)
		file.Close()
		return nil, err
	}
	return &Ring{
		r:    r,
		path: path,
		closer: func() error {
			err := unix.Munmap(data)
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}

// deferSignals holds back SIGINT and SIGTERM until the returned function is
// called, which raises any of them that arrived in between.
func deferSignals() func() {
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, unix.SIGINT, unix.SIGTERM)
	return func() {
		signal.Stop(sigc)
		for {
			select {
			case sig := <-sigc:
				unix.Kill(os.Getpid(), sig.(unix.Signal))
			default:
				return
			}
		}
	}
}
