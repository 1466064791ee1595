// Copyright 2026 The pmap Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// pmapctl inspects and edits pmap files holding named integer records.
//
// Usage:
//
//	pmapctl [flags] <file>                 Start an interactive shell
//	pmapctl [flags] <file> <command> ...   Run one command and exit
//
// The file is created if it doesn't exist, and expanded if it holds fewer
// than --capacity slots.  Run 'pmapctl --help' for flags and
// 'pmapctl <file> help' for commands.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/bpowers/pmap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes pmapctl and returns the process exit code.
func run(args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("pmapctl", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: pmapctl [flags] <file> [command args...]\n\n")
		fmt.Fprintf(w, "Flags:\n")
		flagSet.PrintDefaults()
	}

	capacity := flagSet.Uint32P("capacity", "c", 0, "slot capacity to create with or expand to (default 1024)")
	layout := flagSet.StringP("layout", "l", "", "file layout: tagged or linked (default tagged)")
	create := flagSet.Bool("create", false, "create a new file, replacing any existing one")
	mapper := flagSet.String("mapper", "", "mapping implementation: unix, portable or default")
	configPath := flagSet.String("config", "", "JSON config file (comments allowed)")
	verbose := flagSet.BoolP("verbose", "v", false, "log lifecycle events to stderr")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flagSet.NArg() < 1 {
		flagSet.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	if flagSet.Changed("capacity") {
		cfg.Capacity = *capacity
	}
	if flagSet.Changed("layout") {
		cfg.Layout = *layout
	}
	if flagSet.Changed("mapper") {
		cfg.Mapper = *mapper
	}
	if flagSet.Changed("verbose") {
		cfg.Verbose = *verbose
	}

	m, err := openStore(flagSet.Arg(0), cfg, *create, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}()

	s := &session{
		m:   m,
		out: out,
		gen: newGenerator(newRand()),
		now: time.Now,
	}

	if flagSet.NArg() == 1 {
		if err := s.shell(cfg.History, errOut); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return 1
		}
		return 0
	}

	err = s.exec(flagSet.Args()[1:])
	switch {
	case err == nil, errors.Is(err, errQuit):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
}

func openStore(path string, cfg config, create bool, errOut io.Writer) (*store, error) {
	layout, err := pmap.ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}
	mapper, err := pmap.ParseMapper(cfg.Mapper)
	if err != nil {
		return nil, err
	}

	opts := []pmap.Option{
		pmap.WithLayout(layout),
		pmap.WithMapper(mapper),
	}
	if cfg.Verbose {
		logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, pmap.WithLogger(logger))
	}

	switch {
	case create:
		return pmap.Create(path, cfg.capacityOrDefault(), recordKey, opts...)
	case cfg.Capacity != 0:
		return pmap.Attach(path, cfg.Capacity, recordKey, opts...)
	}
	// no capacity asked for: leave existing files at their size
	m, err := pmap.Open(path, 0, recordKey, opts...)
	if errors.Is(err, fs.ErrNotExist) {
		return pmap.Create(path, cfg.capacityOrDefault(), recordKey, opts...)
	}
	return m, err
}
