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

package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// DevnetChainID is the chain id of the local development network.
const DevnetChainID = 20143

// DefaultReserveBalance is the per-account balance, in wei, that in-flight
// transactions may not dip below once the reserve balance policy is active.
var DefaultReserveBalance = new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether))

// Config is the user facing chain configuration. It is decoded from the
// [Chain] section of the TOML config file.
type Config struct {
	Name    string
	ChainID uint64

	// RevisionTimes holds the activation timestamp of each revision, in
	// revision order. Revisions beyond the end of the list never activate.
	RevisionTimes []uint64

	// ReserveBalance overrides DefaultReserveBalance when set.
	ReserveBalance *big.Int `toml:",omitempty"`
}

// DevnetConfig activates every revision at genesis.
var DevnetConfig = Config{
	Name:          "devnet",
	ChainID:       DevnetChainID,
	RevisionTimes: []uint64{0, 0, 0, 0, 0},
}

// Presets maps the names accepted by --chain to configs.
var Presets = map[string]Config{
	DevnetConfig.Name: DevnetConfig,
}

// Validate checks that the revision schedule is well formed.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return errors.New("chain id must be set")
	}
	if len(c.RevisionTimes) == 0 {
		return errors.New("no revision activates")
	}
	if c.RevisionTimes[0] != 0 {
		return fmt.Errorf("%v must activate at genesis, have %d", RevisionZero, c.RevisionTimes[0])
	}
	if len(c.RevisionTimes) > int(NumRevisions) {
		return fmt.Errorf("%d revision times configured, only %d revisions known", len(c.RevisionTimes), NumRevisions)
	}
	for i := 1; i < len(c.RevisionTimes); i++ {
		if c.RevisionTimes[i] < c.RevisionTimes[i-1] {
			return fmt.Errorf("%v activates before %v", Revision(i), Revision(i-1))
		}
	}
	if c.ReserveBalance != nil && c.ReserveBalance.Sign() < 0 {
		return errors.New("negative reserve balance")
	}
	return nil
}

// ethConfig builds the EVM chain configuration. Everything up to Cancun is
// active from genesis; Prague follows RevisionFour. Blocks carry no blobs,
// but the EVM still needs the default blob schedule for its blob fee.
func (c *Config) ethConfig() *params.ChainConfig {
	var prague *uint64
	if len(c.RevisionTimes) > int(RevisionFour) {
		t := c.RevisionTimes[RevisionFour]
		prague = &t
	}
	zero := uint64(0)
	return &params.ChainConfig{
		ChainID:                 new(big.Int).SetUint64(c.ChainID),
		HomesteadBlock:          common.Big0,
		EIP150Block:             common.Big0,
		EIP155Block:             common.Big0,
		EIP158Block:             common.Big0,
		ByzantiumBlock:          common.Big0,
		ConstantinopleBlock:     common.Big0,
		PetersburgBlock:         common.Big0,
		IstanbulBlock:           common.Big0,
		MuirGlacierBlock:        common.Big0,
		BerlinBlock:             common.Big0,
		LondonBlock:             common.Big0,
		ArrowGlacierBlock:       common.Big0,
		GrayGlacierBlock:        common.Big0,
		MergeNetsplitBlock:      common.Big0,
		ShanghaiTime:            &zero,
		CancunTime:              &zero,
		PragueTime:              prague,
		TerminalTotalDifficulty: common.Big0,
		BlobScheduleConfig: &params.BlobScheduleConfig{
			Cancun: params.DefaultCancunBlobConfig,
			Prague: params.DefaultPragueBlobConfig,
		},
	}
}
