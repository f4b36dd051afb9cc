// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"github.com/seapath/abboot/efibootmgr"
	"github.com/seapath/abboot/logger"
)

func init() {
	const (
		short = "Rebuild the boot entries of both slots"
		long  = `
The install command deletes and recreates the boot entry of each slot,
puts the active slot first in the boot order followed by the passive slot,
disables the passive slot entry and sets the active slot as the next boot.
Entries not owned by a slot are left untouched.
`
	)

	if _, err := parser.AddCommand("install", short, long, &cmdInstall{}); err != nil {
		panic(err)
	}
}

type cmdInstall struct{}

func (c *cmdInstall) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := commandContext
	guard := newGuard()
	store, err := openStore(ctx, cfg, guard)
	if err != nil {
		return err
	}

	ctrl := efibootmgr.NewController(store, guard, cfg.Controller())
	if err := ctrl.Run(ctx); err != nil {
		logger.Debugf("boot configuration stopped in state %s", ctrl.State())
		return err
	}
	logger.Noticef("slot %d boots next", cfg.ActiveSlot)
	return nil
}
