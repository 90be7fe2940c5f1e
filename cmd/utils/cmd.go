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

package utils

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/ethereum/go-ethereum/metrics/influxdb"
)

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// SetupMetrics enables the metrics system and starts the configured
// exporters: the stand-alone HTTP server and at most one InfluxDB reporter.
func SetupMetrics(cfg *metrics.Config) error {
	if !cfg.Enabled {
		return nil
	}
	if err := checkInfluxDB(cfg); err != nil {
		return err
	}
	log.Info("Enabling metrics collection")
	metrics.Enable()
	go metrics.CollectProcessMetrics(3 * time.Second)

	tags := SplitTagsFlag(cfg.InfluxDBTags)
	switch {
	case cfg.EnableInfluxDB:
		log.Info("Enabling metrics export to InfluxDB", "endpoint", cfg.InfluxDBEndpoint, "database", cfg.InfluxDBDatabase)
		go influxdb.InfluxDBWithTags(metrics.DefaultRegistry, 10*time.Second, cfg.InfluxDBEndpoint, cfg.InfluxDBDatabase, cfg.InfluxDBUsername, cfg.InfluxDBPassword, "monad.", tags)
	case cfg.EnableInfluxDBV2:
		log.Info("Enabling metrics export to InfluxDB (v2)", "endpoint", cfg.InfluxDBEndpoint, "bucket", cfg.InfluxDBBucket)
		go influxdb.InfluxDBV2WithTags(metrics.DefaultRegistry, 10*time.Second, cfg.InfluxDBEndpoint, cfg.InfluxDBToken, cfg.InfluxDBBucket, cfg.InfluxDBOrganization, "monad.", tags)
	}
	if cfg.HTTP != "" {
		address := net.JoinHostPort(cfg.HTTP, fmt.Sprintf("%d", cfg.Port))
		log.Info("Enabling stand-alone metrics HTTP endpoint", "address", address)
		exp.Setup(address)
	}
	return nil
}

func checkInfluxDB(cfg *metrics.Config) error {
	switch {
	case cfg.EnableInfluxDB && cfg.EnableInfluxDBV2:
		return errors.New("the v1 and v2 InfluxDB exporters can't be enabled together")
	case cfg.EnableInfluxDBV2 && (cfg.InfluxDBToken == "" || cfg.InfluxDBBucket == "" || cfg.InfluxDBOrganization == ""):
		return errors.New("the InfluxDB v2 exporter needs a token, a bucket and an organization")
	case (cfg.EnableInfluxDB || cfg.EnableInfluxDBV2) && cfg.InfluxDBEndpoint == "":
		return errors.New("InfluxDB export enabled without an endpoint")
	}
	return nil
}

// SplitTagsFlag parses a comma separated list of key=value pairs. Malformed
// entries are skipped.
func SplitTagsFlag(tagsFlag string) map[string]string {
	tags := make(map[string]string)
	for _, t := range strings.Split(tagsFlag, ",") {
		if t == "" {
			continue
		}
		kv := strings.Split(t, "=")
		if len(kv) == 2 && kv[0] != "" {
			tags[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return tags
}
