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


package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/monadgo/execution/chain"
	"github.com/monadgo/execution/cmd/utils"
	"github.com/monadgo/execution/core/store"
	"github.com/monadgo/execution/internal/flags"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}

	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Flags:       nodeFlags,
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// nodeConfig holds the settings of the replay itself.
type nodeConfig struct {
	DataDir       string
	LedgerDir     string
	Genesis       string `toml:",omitempty"`
	NBlocks       uint64
	Until         uint64 `toml:",omitempty"`
	Threads       int
	BlockCacheMB  int
	Speculative   bool
	TraceCalls    bool
	ExecEventRing string `toml:",omitempty"`
}

type monadConfig struct {
	Node    nodeConfig
	Chain   chain.Config
	Store   store.Config
	Metrics metrics.Config
}

func loadConfig(file string, cfg *monadConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultConfig() monadConfig {
	return monadConfig{
		Node: nodeConfig{
			DataDir:      utils.DataDirFlag.Value.String(),
			BlockCacheMB: utils.BlockCacheFlag.Value,
			Speculative:  true,
		},
		Chain:   chain.DevnetConfig,
		Store:   store.DefaultConfig,
		Metrics: metrics.DefaultConfig,
	}
}

// loadBaseConfig loads the configuration based on the given command line
// parameters and config file.
func loadBaseConfig(ctx *cli.Context) (monadConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyFlags(ctx, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Chain.Validate()
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(ctx *cli.Context, cfg *monadConfig) error {
	if err := flags.CheckExclusive(ctx, utils.NBlocksFlag, utils.UntilFlag); err != nil {
		return err
	}
	if ctx.IsSet(utils.ChainFlag.Name) {
		preset, ok := chain.Presets[ctx.String(utils.ChainFlag.Name)]
		if !ok {
			return fmt.Errorf("unknown chain %q", ctx.String(utils.ChainFlag.Name))
		}
		cfg.Chain = preset
	}
	if ctx.IsSet(utils.DataDirFlag.Name) {
		cfg.Node.DataDir = ctx.String(utils.DataDirFlag.Name)
	}
	if ctx.IsSet(utils.LedgerDirFlag.Name) {
		dir, err := flags.RequireDirectory(ctx, utils.LedgerDirFlag)
		if err != nil {
			return err
		}
		cfg.Node.LedgerDir = dir
	}
	if ctx.IsSet(utils.GenesisFlag.Name) {
		cfg.Node.Genesis = ctx.String(utils.GenesisFlag.Name)
	}
	if ctx.IsSet(utils.NBlocksFlag.Name) {
		cfg.Node.NBlocks = ctx.Uint64(utils.NBlocksFlag.Name)
		cfg.Node.Until = 0
	}
	if ctx.IsSet(utils.UntilFlag.Name) {
		cfg.Node.Until = ctx.Uint64(utils.UntilFlag.Name)
		cfg.Node.NBlocks = 0
	}
	if ctx.IsSet(utils.ThreadsFlag.Name) {
		cfg.Node.Threads = ctx.Int(utils.ThreadsFlag.Name)
	}
	if ctx.IsSet(utils.BlockCacheFlag.Name) {
		cfg.Node.BlockCacheMB = ctx.Int(utils.BlockCacheFlag.Name)
	}
	if ctx.IsSet(utils.NoSpeculationFlag.Name) {
		cfg.Node.Speculative = !ctx.Bool(utils.NoSpeculationFlag.Name)
	}
	if ctx.IsSet(utils.TraceCallsFlag.Name) {
		cfg.Node.TraceCalls = ctx.Bool(utils.TraceCallsFlag.Name)
	}
	if ctx.IsSet(utils.ExecEventRingFlag.Name) {
		cfg.Node.ExecEventRing = ctx.String(utils.ExecEventRingFlag.Name)
	}
	if ctx.IsSet(utils.DBEngineFlag.Name) {
		cfg.Store.Engine = ctx.String(utils.DBEngineFlag.Name)
	}
	if ctx.IsSet(utils.CacheFlag.Name) {
		cfg.Store.Cache = ctx.Int(utils.CacheFlag.Name)
	}
	if ctx.IsSet(utils.MetricsEnabledFlag.Name) {
		cfg.Metrics.Enabled = ctx.Bool(utils.MetricsEnabledFlag.Name)
	}
	if ctx.IsSet(utils.MetricsHTTPFlag.Name) {
		cfg.Metrics.HTTP = ctx.String(utils.MetricsHTTPFlag.Name)
	}
	if ctx.IsSet(utils.MetricsPortFlag.Name) {
		cfg.Metrics.Port = ctx.Int(utils.MetricsPortFlag.Name)
	}
	if ctx.IsSet(utils.MetricsEnableInfluxDBFlag.Name) {
		cfg.Metrics.EnableInfluxDB = ctx.Bool(utils.MetricsEnableInfluxDBFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBEndpointFlag.Name) {
		cfg.Metrics.InfluxDBEndpoint = ctx.String(utils.MetricsInfluxDBEndpointFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBDatabaseFlag.Name) {
		cfg.Metrics.InfluxDBDatabase = ctx.String(utils.MetricsInfluxDBDatabaseFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBUsernameFlag.Name) {
		cfg.Metrics.InfluxDBUsername = ctx.String(utils.MetricsInfluxDBUsernameFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBPasswordFlag.Name) {
		cfg.Metrics.InfluxDBPassword = ctx.String(utils.MetricsInfluxDBPasswordFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBTagsFlag.Name) {
		cfg.Metrics.InfluxDBTags = ctx.String(utils.MetricsInfluxDBTagsFlag.Name)
	}
	if ctx.IsSet(utils.MetricsEnableInfluxDBV2Flag.Name) {
		cfg.Metrics.EnableInfluxDBV2 = ctx.Bool(utils.MetricsEnableInfluxDBV2Flag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBTokenFlag.Name) {
		cfg.Metrics.InfluxDBToken = ctx.String(utils.MetricsInfluxDBTokenFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBBucketFlag.Name) {
		cfg.Metrics.InfluxDBBucket = ctx.String(utils.MetricsInfluxDBBucketFlag.Name)
	}
	if ctx.IsSet(utils.MetricsInfluxDBOrganizationFlag.Name) {
		cfg.Metrics.InfluxDBOrganization = ctx.String(utils.MetricsInfluxDBOrganizationFlag.Name)
	}
	return nil
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.WriteString("# Note: this config doesn't contain the genesis block.\n\n")
	dump.Write(out)

	return nil
}
