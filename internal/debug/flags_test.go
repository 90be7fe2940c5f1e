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

package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/internal/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runSetup(t *testing.T, args ...string) error {
	t.Helper()
	defer func(l log.Logger) { log.SetDefault(l) }(log.Root())

	app := flags.NewApp("test")
	app.Flags = Flags
	app.Action = func(ctx *cli.Context) error {
		if err := Setup(ctx); err != nil {
			return err
		}
		log.Info("Hello from setup")
		Exit()
		return nil
	}
	return app.Run(append([]string{"test"}, args...))
}

func TestSetupLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "node.log")
	heapFile := filepath.Join(dir, "heap.pprof")
	require.NoError(t, runSetup(t, "--log.format", "logfmt", "--log.file", logFile, "--pprof.heapprofile", heapFile))

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "msg=\"Hello from setup\"")
	assert.FileExists(t, heapFile)
}

func TestSetupRejectsBadInput(t *testing.T) {
	assert.ErrorContains(t, runSetup(t, "--log.format", "xml"), "unknown log format")
	assert.ErrorContains(t, runSetup(t, "--log.vmodule", "core=x"), "invalid --log.vmodule")
}
