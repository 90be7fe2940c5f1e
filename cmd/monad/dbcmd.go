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
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/monadgo/execution/cmd/utils"
	"github.com/monadgo/execution/core/store"
	"github.com/urfave/cli/v2"
)

var inspectCommand = &cli.Command{
	Action:    inspect,
	Name:      "inspect",
	Usage:     "Inspect the state store",
	ArgsUsage: "",
	Flags: []cli.Flag{
		configFileFlag,
		utils.DataDirFlag,
		utils.DBEngineFlag,
		utils.CacheFlag,
	},
	Description: `This command reports the finalized and verified heights of the state store
and iterates the entire database, printing the storage size of each category.`,
}

func inspect(ctx *cli.Context) error {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	storeCfg := cfg.Store
	storeCfg.ReadOnly = true
	s, err := store.Open(filepath.Join(cfg.Node.DataDir, stateDirName), storeCfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if finalized, ok := s.LatestFinalized(); ok {
		header, err := s.ReadCanonicalHeader(finalized)
		if err != nil {
			return err
		}
		fmt.Printf("Finalized: %d (%x)\n", finalized, header.Hash())
	} else {
		fmt.Println("Finalized: none")
	}
	if verified, ok := s.LatestVerified(); ok {
		fmt.Printf("Verified:  %d\n", verified)
	}
	fmt.Printf("Store:     %s\n", s.PrintStats())
	showDBStats(s.DB())
	return rawdb.InspectDatabase(s.DB(), nil, nil)
}

func showDBStats(db ethdb.KeyValueStater) {
	stats, err := db.Stat()
	if err != nil {
		log.Warn("Failed to read database stats", "error", err)
		return
	}
	fmt.Println(stats)
}
