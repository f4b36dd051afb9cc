// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/seapath/abboot/efibootmgr"
)

func init() {
	const (
		short = "Show the boot entries of both slots"
		long  = ""
	)

	if _, err := parser.AddCommand("status", short, long, &cmdStatus{}); err != nil {
		panic(err)
	}
}

type cmdStatus struct{}

func (c *cmdStatus) Execute([]string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := commandContext
	guard := newGuard()
	if err := guard.EnsureAccess(); err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, guard)
	if err != nil {
		return err
	}

	entries, err := store.List(ctx)
	if err != nil {
		return &efibootmgr.Error{Kind: efibootmgr.AccessUnavailable, Title: "Cannot read boot entries", Err: err}
	}
	order, err := store.Order(ctx)
	if err != nil {
		return &efibootmgr.Error{Kind: efibootmgr.AccessUnavailable, Title: "Cannot read boot order", Err: err}
	}

	ctrlCfg := cfg.Controller()
	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintf(w, "Slot\tEntry\tLabel\tState\n")
	for _, slot := range efibootmgr.Slots {
		label := ctrlCfg.Label(slot)
		id, state := "-", "missing"
		for _, e := range entries {
			if e.Label != label {
				continue
			}
			id, state = "Boot"+e.ID, "inactive"
			if e.Active {
				state = "active"
			}
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", slot, id, label, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(Stdout, "BootOrder: %s\n", strings.Join(order, ","))
	if nr, ok := store.(efibootmgr.NextReader); ok {
		next, err := nr.Next(ctx)
		if err != nil {
			return &efibootmgr.Error{Kind: efibootmgr.AccessUnavailable, Title: "Cannot read next boot entry", Err: err}
		}
		if next != "" {
			fmt.Fprintf(Stdout, "BootNext: %s\n", next)
		}
	}
	return nil
}
