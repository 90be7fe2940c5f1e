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

// Package utils contains internal helper functions for the node commands.
package utils

import (
	"path/filepath"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/core/store"
	"github.com/monadgo/execution/internal/flags"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	DataDirFlag = &flags.DirectoryFlag{
		Name:     "datadir",
		Usage:    "Data directory for the state store",
		Value:    flags.DirectoryString(filepath.Join(flags.HomeDir(), ".monad")),
		Category: flags.DatabaseCategory,
	}
	LedgerDirFlag = &flags.DirectoryFlag{
		Name:     "ledger",
		Usage:    "Directory of the block archive to replay",
		Category: flags.ChainCategory,
	}
	ChainFlag = &cli.StringFlag{
		Name:     "chain",
		Usage:    "Chain preset to execute",
		Value:    chain.DevnetConfig.Name,
		Category: flags.ChainCategory,
	}
	GenesisFlag = &cli.StringFlag{
		Name:     "genesis",
		Usage:    "Genesis JSON used to initialize an empty state store",
		Category: flags.ChainCategory,
	}

	// Execution settings
	NBlocksFlag = &cli.Uint64Flag{
		Name:     "nblocks",
		Usage:    "Number of blocks to execute (0 = until interrupted)",
		Category: flags.ExecutionCategory,
	}
	UntilFlag = &cli.Uint64Flag{
		Name:     "until",
		Usage:    "Number of the last block to execute (0 = until interrupted)",
		Category: flags.ExecutionCategory,
	}
	TraceCallsFlag = &cli.BoolFlag{
		Name:     "trace-calls",
		Usage:    "Record call frames and state diffs of every transaction",
		Category: flags.ExecutionCategory,
	}
	NoSpeculationFlag = &cli.BoolFlag{
		Name:     "nospeculation",
		Usage:    "Disable speculative parallel pre-execution of transactions",
		Category: flags.ExecutionCategory,
	}
	ExecEventRingFlag = &cli.StringFlag{
		Name:     "exec-event-ring",
		Usage:    "Record execution events to a ring: <ring-name-or-path>[:<descriptor-shift>:<payload-buffer-shift>]",
		Category: flags.EventCategory,
	}

	// Database settings
	DBEngineFlag = &cli.StringFlag{
		Name:     "db.engine",
		Usage:    "Backing database implementation to use ('pebble' or 'leveldb')",
		Value:    store.DefaultConfig.Engine,
		Category: flags.DatabaseCategory,
	}

	// Performance tuning settings
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to the state store",
		Value:    store.DefaultConfig.Cache,
		Category: flags.PerfCategory,
	}
	BlockCacheFlag = &cli.IntFlag{
		Name:     "cache.blocks",
		Usage:    "Megabytes of memory allocated to caching archived blocks",
		Value:    64,
		Category: flags.PerfCategory,
	}
	ThreadsFlag = &cli.IntFlag{
		Name:     "threads",
		Usage:    "Worker threads for sender recovery and speculative execution (0 = number of CPUs)",
		Category: flags.PerfCategory,
	}

	// Metrics flags
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	MetricsHTTPFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening interface",
		Category: flags.MetricsCategory,
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:     "metrics.port",
		Usage:    "Metrics HTTP server listening port",
		Value:    metrics.DefaultConfig.Port,
		Category: flags.MetricsCategory,
	}
	MetricsEnableInfluxDBFlag = &cli.BoolFlag{
		Name:     "metrics.influxdb",
		Usage:    "Enable metrics export/push to an external InfluxDB database",
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBEndpointFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.endpoint",
		Usage:    "InfluxDB API endpoint to report metrics to",
		Value:    metrics.DefaultConfig.InfluxDBEndpoint,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBDatabaseFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.database",
		Usage:    "InfluxDB database name to push reported metrics to",
		Value:    metrics.DefaultConfig.InfluxDBDatabase,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBUsernameFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.username",
		Usage:    "Username to authorize access to the database",
		Value:    metrics.DefaultConfig.InfluxDBUsername,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBPasswordFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.password",
		Usage:    "Password to authorize access to the database",
		Value:    metrics.DefaultConfig.InfluxDBPassword,
		Category: flags.MetricsCategory,
	}
	// Tags are part of every measurement sent to InfluxDB. Queries on tags
	// are faster in InfluxDB. For example, the host tag can tell several
	// nodes replaying the same ledger apart.
	MetricsInfluxDBTagsFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.tags",
		Usage:    "Comma-separated InfluxDB tags (key/values) attached to all measurements",
		Value:    metrics.DefaultConfig.InfluxDBTags,
		Category: flags.MetricsCategory,
	}
	MetricsEnableInfluxDBV2Flag = &cli.BoolFlag{
		Name:     "metrics.influxdbv2",
		Usage:    "Enable metrics export/push to an external InfluxDB v2 database",
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBTokenFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.token",
		Usage:    "Token to authorize access to the database (v2 only)",
		Value:    metrics.DefaultConfig.InfluxDBToken,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBBucketFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.bucket",
		Usage:    "InfluxDB bucket name to push reported metrics to (v2 only)",
		Value:    metrics.DefaultConfig.InfluxDBBucket,
		Category: flags.MetricsCategory,
	}
	MetricsInfluxDBOrganizationFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.organization",
		Usage:    "InfluxDB organization name (v2 only)",
		Value:    metrics.DefaultConfig.InfluxDBOrganization,
		Category: flags.MetricsCategory,
	}
)
