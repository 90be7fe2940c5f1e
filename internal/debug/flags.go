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
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/monadgo/execution/internal/flags"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	logVmoduleFlag = &cli.StringFlag{
		Name:     "log.vmodule",
		Usage:    "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. core/*=5,event=4)",
		Category: flags.LoggingCategory,
	}
	logFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Usage:    "Log format to use (json|logfmt|terminal)",
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file",
		Category: flags.LoggingCategory,
	}
	logRotateFlag = &cli.BoolFlag{
		Name:     "log.rotate",
		Usage:    "Enables log file rotation",
		Category: flags.LoggingCategory,
	}
	logMaxSizeMBsFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Maximum size in MBs of a single log file",
		Value:    100,
		Category: flags.LoggingCategory,
	}
	logMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Usage:    "Maximum number of log files to retain",
		Value:    10,
		Category: flags.LoggingCategory,
	}
	logMaxAgeFlag = &cli.IntFlag{
		Name:     "log.maxage",
		Usage:    "Maximum number of days to retain a log file",
		Value:    30,
		Category: flags.LoggingCategory,
	}
	logCompressFlag = &cli.BoolFlag{
		Name:     "log.compress",
		Usage:    "Compress the log files",
		Category: flags.LoggingCategory,
	}
	pprofFlag = &cli.BoolFlag{
		Name:     "pprof",
		Usage:    "Enable the pprof HTTP server",
		Category: flags.LoggingCategory,
	}
	pprofPortFlag = &cli.IntFlag{
		Name:     "pprof.port",
		Usage:    "pprof HTTP server listening port",
		Value:    6060,
		Category: flags.LoggingCategory,
	}
	pprofAddrFlag = &cli.StringFlag{
		Name:     "pprof.addr",
		Usage:    "pprof HTTP server listening interface",
		Value:    "127.0.0.1",
		Category: flags.LoggingCategory,
	}
	memprofilerateFlag = &cli.IntFlag{
		Name:     "pprof.memprofilerate",
		Usage:    "Turn on memory profiling with the given rate",
		Value:    runtime.MemProfileRate,
		Category: flags.LoggingCategory,
	}
	blockprofilerateFlag = &cli.IntFlag{
		Name:     "pprof.blockprofilerate",
		Usage:    "Turn on block profiling with the given rate",
		Category: flags.LoggingCategory,
	}
	cpuprofileFlag = &cli.StringFlag{
		Name:     "pprof.cpuprofile",
		Usage:    "Write CPU profile to the given file",
		Category: flags.LoggingCategory,
	}
	heapprofileFlag = &cli.StringFlag{
		Name:     "pprof.heapprofile",
		Usage:    "Write a heap profile to the given file on exit",
		Category: flags.LoggingCategory,
	}
	traceFlag = &cli.StringFlag{
		Name:     "go-execution-trace",
		Usage:    "Write Go execution trace to the given file",
		Category: flags.LoggingCategory,
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	verbosityFlag,
	logVmoduleFlag,
	logFormatFlag,
	logFileFlag,
	logRotateFlag,
	logMaxSizeMBsFlag,
	logMaxBackupsFlag,
	logMaxAgeFlag,
	logCompressFlag,
	pprofFlag,
	pprofAddrFlag,
	pprofPortFlag,
	memprofilerateFlag,
	blockprofilerateFlag,
	cpuprofileFlag,
	heapprofileFlag,
	traceFlag,
}

var logOutputFile io.WriteCloser

// logSettings is the logging part of the command line.
type logSettings struct {
	format    string
	file      string
	rotate    bool
	verbosity int
	vmodule   string
	rotation  *lumberjack.Logger
}

func readLogSettings(ctx *cli.Context) logSettings {
	return logSettings{
		format:    ctx.String(logFormatFlag.Name),
		file:      ctx.String(logFileFlag.Name),
		rotate:    ctx.Bool(logRotateFlag.Name),
		verbosity: ctx.Int(verbosityFlag.Name),
		vmodule:   ctx.String(logVmoduleFlag.Name),
		rotation: &lumberjack.Logger{
			Filename:   ctx.String(logFileFlag.Name),
			MaxSize:    ctx.Int(logMaxSizeMBsFlag.Name),
			MaxBackups: ctx.Int(logMaxBackupsFlag.Name),
			MaxAge:     ctx.Int(logMaxAgeFlag.Name),
			Compress:   ctx.Bool(logCompressFlag.Name),
		},
	}
}

// location describes where file output goes, empty if there is none.
func (s *logSettings) location() string {
	switch {
	case s.file != "":
		return s.file
	case s.rotate:
		// Lumberjack picks <processname>-lumberjack.log in the temp dir.
		return filepath.Join(os.TempDir(), filepath.Base(os.Args[0])+"-lumberjack.log")
	}
	return ""
}

// openFile returns the file side of the log output, nil if logs only go to
// the terminal.
func (s *logSettings) openFile() (io.WriteCloser, error) {
	if s.file != "" {
		if err := validateLogLocation(filepath.Dir(s.file)); err != nil {
			return nil, fmt.Errorf("failed to initialize file logger: %v", err)
		}
	}
	switch {
	case s.rotate:
		return s.rotation, nil
	case s.file != "":
		return os.OpenFile(s.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	}
	return nil, nil
}

// handler builds the slog handler writing to the terminal and to file.
func (s *logSettings) handler(file io.Writer) (slog.Handler, error) {
	join := func(terminal io.Writer) io.Writer {
		if file == nil {
			return terminal
		}
		return io.MultiWriter(file, terminal)
	}
	switch s.format {
	case "json":
		return log.JSONHandler(join(os.Stderr)), nil
	case "logfmt":
		return log.LogfmtHandler(join(os.Stderr)), nil
	case "", "terminal":
		fd := os.Stderr.Fd()
		if (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb" {
			return log.NewTerminalHandler(join(colorable.NewColorableStderr()), true), nil
		}
		return log.NewTerminalHandler(join(os.Stderr), false), nil
	}
	return nil, fmt.Errorf("unknown log format: %v", s.format)
}

func setupLogging(ctx *cli.Context) error {
	settings := readLogSettings(ctx)
	file, err := settings.openFile()
	if err != nil {
		return err
	}
	handler, err := settings.handler(file)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return err
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(log.FromLegacyLevel(settings.verbosity))
	if err := glogger.Vmodule(settings.vmodule); err != nil {
		if file != nil {
			file.Close()
		}
		return fmt.Errorf("invalid --%s: %w", logVmoduleFlag.Name, err)
	}
	log.SetDefault(log.NewLogger(glogger))
	logOutputFile = file

	if loc := settings.location(); loc != "" {
		format := settings.format
		if format == "" {
			format = "terminal"
		}
		log.Info("Logging configured", "rotate", settings.rotate, "format", format, "location", loc)
	}
	return nil
}

// Setup initializes logging and profiling from the command line. It should
// run before anything else logs.
func Setup(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}
	runtime.MemProfileRate = memprofilerateFlag.Value
	if ctx.IsSet(memprofilerateFlag.Name) {
		runtime.MemProfileRate = ctx.Int(memprofilerateFlag.Name)
	}
	runtime.SetBlockProfileRate(ctx.Int(blockprofilerateFlag.Name))

	if traceFile := ctx.String(traceFlag.Name); traceFile != "" {
		if err := profiles.startGoTrace(traceFile); err != nil {
			return err
		}
	}
	if cpuFile := ctx.String(cpuprofileFlag.Name); cpuFile != "" {
		if err := profiles.startCPUProfile(cpuFile); err != nil {
			return err
		}
	}
	profiles.heapFile = ctx.String(heapprofileFlag.Name)

	if ctx.Bool(pprofFlag.Name) {
		address := net.JoinHostPort(ctx.String(pprofAddrFlag.Name), strconv.Itoa(ctx.Int(pprofPortFlag.Name)))
		// A dedicated metrics server serves the registry itself.
		StartPProf(address, !ctx.IsSet("metrics.addr"))
	}
	return nil
}

// StartPProf starts the pprof HTTP server, optionally serving the metrics
// registry under /debug/metrics as well.
func StartPProf(address string, withMetrics bool) {
	if withMetrics {
		exp.Exp(metrics.DefaultRegistry)
	}
	log.Info("Starting pprof server", "addr", fmt.Sprintf("http://%s/debug/pprof", address))
	go func() {
		if err := http.ListenAndServe(address, nil); err != nil {
			log.Error("Failure in running pprof server", "err", err)
		}
	}()
}

// Exit stops all running profiles, flushing their output to the respective file.
func Exit() {
	profiles.stop()
	if logOutputFile != nil {
		logOutputFile.Close()
		logOutputFile = nil
	}
}

// validateLogLocation checks if the log directory is valid and writable.
func validateLogLocation(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("error creating the directory: %w", err)
	}
	tmp := filepath.Join(path, "tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(tmp)
}
