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

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSender is returned if the signer of a transaction cannot be
	// recovered. No part of the block is executed.
	ErrMissingSender = errors.New("missing sender")

	// ErrExecution is returned when the execution engine rejects a block.
	ErrExecution = errors.New("execution failed")

	// ErrCommitMismatch is returned when the header read back from the store
	// after commit differs from the block header. It means locally computed
	// state diverged and must never be retried.
	ErrCommitMismatch = errors.New("commit mismatch")

	// ErrParentLinkage is returned when the block does not extend the block
	// the store is scoped to.
	ErrParentLinkage = errors.New("invalid parent linkage")

	// ErrArchive is returned when a block cannot be read from the archive.
	ErrArchive = errors.New("block archive read failed")
)

// Stage names the pipeline step a block failed in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageValidate Stage = "validate"
	StageRecover  Stage = "recover"
	StageExecute  Stage = "execute"
	StageCommit   Stage = "commit"
)

// BlockError is the single error surfaced for a failed block.
type BlockError struct {
	Number uint64
	Stage  Stage
	Err    error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %s: %v", e.Number, e.Stage, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

func blockError(number uint64, stage Stage, err error) error {
	return &BlockError{Number: number, Stage: stage, Err: err}
}

// IsIntegrityFailure reports whether err signals corrupted or non
// deterministic state, after which the process must not continue.
func IsIntegrityFailure(err error) bool {
	return errors.Is(err, ErrCommitMismatch)
}
