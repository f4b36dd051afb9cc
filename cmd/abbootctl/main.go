// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/seapath/abboot/config"
	"github.com/seapath/abboot/efibootmgr"
	"github.com/seapath/abboot/logger"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	opts   globalOptions
	parser *flags.Parser = flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
)

const (
	shortHelp = "Configure the firmware boot entries of an A/B installation"
	longHelp  = `
abbootctl creates one firmware boot entry per slot of a freshly installed
disk, puts the active slot first in the boot order and boots it next. The
other slot is kept as a disabled fallback.
`
)

type globalOptions struct {
	Config  string        `long:"config" value-name:"PATH" description:"Configuration file (default /etc/abboot/config.yaml)"`
	Debug   bool          `long:"debug" description:"Print debug messages"`
	Device  string        `long:"device" value-name:"DEVICE" description:"Target disk, e.g. /dev/sda"`
	Backend string        `long:"backend" choice:"efibootmgr" choice:"efivarfs" description:"How firmware variables are accessed"`
	Timeout time.Duration `long:"timeout" value-name:"DURATION" description:"Timeout of each efibootmgr call, 0 to disable"`
}

// hooks replaced in tests
var (
	newGuard = func() efibootmgr.Guard {
		return efibootmgr.NewAccessGuard()
	}
	newVariables = func() efibootmgr.EFIVariables {
		return efibootmgr.RealEFIVariables{}
	}
	newRunner = func(timeout time.Duration) efibootmgr.Runner {
		return efibootmgr.ExecRunner{Timeout: timeout}
	}
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Fprintln(Stdout, err)
			return
		}
		title, msg := efibootmgr.TitleAndMessage(err)
		fmt.Fprintf(Stderr, "%s: %s\n", title, msg)
		os.Exit(1)
	}
}

// commandContext is the context commands run in.
var commandContext = context.Background()

func run(ctx context.Context, args []string) error {
	commandContext = ctx
	parser.ShortDescription = shortHelp
	parser.LongDescription = longHelp

	_, err := parser.ParseArgs(args)
	return err
}

// loadConfig reads the configuration file and applies the command line
// overrides.
func loadConfig() (*config.Config, error) {
	logger.SimpleSetup(opts.Debug)

	path, optional := opts.Config, false
	if path == "" {
		path, optional = config.DefaultPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, &efibootmgr.Error{Kind: efibootmgr.InvariantViolation, Title: "Invalid boot configuration", Err: err}
	}

	if opts.Device != "" {
		cfg.Device = opts.Device
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if parser.FindOptionByLongName("timeout").IsSet() {
		cfg.CommandTimeout = opts.Timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, &efibootmgr.Error{Kind: efibootmgr.InvariantViolation, Title: "Invalid boot configuration", Err: err}
	}
	return cfg, nil
}

// openStore returns the store for the configured backend. The efivarfs
// backend needs the variable store mounted before it can be opened.
func openStore(ctx context.Context, cfg *config.Config, guard efibootmgr.Guard) (efibootmgr.BootConfigStore, error) {
	if cfg.Backend != config.BackendEfivarfs {
		return efibootmgr.NewToolStore(newRunner(cfg.CommandTimeout), cfg.Efibootmgr), nil
	}

	if err := guard.EnsureAccess(); err != nil {
		return nil, err
	}
	store, err := efibootmgr.NewVarStore(ctx, newVariables())
	if err != nil {
		return nil, &efibootmgr.Error{Kind: efibootmgr.AccessUnavailable, Title: "NVRAM unavailable", Err: err}
	}
	return store, nil
}
