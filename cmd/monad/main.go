// Copyright 2025 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.


// monad replays archived blocks through the deferred execution pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/cmd/utils"
	"github.com/monadgo/execution/core"
	"github.com/monadgo/execution/internal/debug"
	"github.com/monadgo/execution/internal/flags"
	"github.com/urfave/cli/v2"
)

const clientIdentifier = "monad"

var (
	nodeFlags = []cli.Flag{
		configFileFlag,
		utils.DataDirFlag,
		utils.LedgerDirFlag,
		utils.ChainFlag,
		utils.GenesisFlag,
		utils.NBlocksFlag,
		utils.UntilFlag,
		utils.TraceCallsFlag,
		utils.NoSpeculationFlag,
		utils.ExecEventRingFlag,
		utils.DBEngineFlag,
		utils.CacheFlag,
		utils.BlockCacheFlag,
		utils.ThreadsFlag,
	}

	metricsFlags = []cli.Flag{
		utils.MetricsEnabledFlag,
		utils.MetricsHTTPFlag,
		utils.MetricsPortFlag,
		utils.MetricsEnableInfluxDBFlag,
		utils.MetricsInfluxDBEndpointFlag,
		utils.MetricsInfluxDBDatabaseFlag,
		utils.MetricsInfluxDBUsernameFlag,
		utils.MetricsInfluxDBPasswordFlag,
		utils.MetricsInfluxDBTagsFlag,
		utils.MetricsEnableInfluxDBV2Flag,
		utils.MetricsInfluxDBTokenFlag,
		utils.MetricsInfluxDBBucketFlag,
		utils.MetricsInfluxDBOrganizationFlag,
	}
)

var app = flags.NewApp("the deferred execution block replay node")

func init() {
	app.Name = clientIdentifier
	app.Action = monad
	app.Commands = []*cli.Command{
		dumpConfigCommand,
		inspectCommand,
	}
	app.Flags = append(append(append([]cli.Flag{}, nodeFlags...), metricsFlags...), debug.Flags...)

	app.Before = func(ctx *cli.Context) error {
		return debug.Setup(ctx)
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		utils.Fatalf("%v", err)
	}
}

// monad is the main entry point into the system if no special subcommand is
// run. It executes blocks from the ledger until the requested count is done,
// the ledger runs out or the process is interrupted.
func monad(ctx *cli.Context) error {
	if args := ctx.Args().Slice(); len(args) > 0 {
		return fmt.Errorf("invalid command: %s", args[0])
	}
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if err := utils.SetupMetrics(&cfg.Metrics); err != nil {
		return err
	}

	n, err := openNode(&cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	_, err = n.run(ctx.Context)
	if core.IsIntegrityFailure(err) {
		// State committed to disk no longer matches the chain.
		n.Close()
		log.Crit("Execution diverged from the canonical chain", "err", err)
	}
	return err
}
