// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

// Package efibootmgr manages the firmware boot entries of an A/B (dual slot)
// installation.
package efibootmgr

import (
	"context"
	"fmt"
)

// BootEntry is a boot entry as reported by the firmware.
type BootEntry struct {
	ID     string // 4 hex digits, for example "0003" for Boot0003
	Label  string // the description of the load option
	Active bool   // whether the load option is enabled for automatic boot
}

// EntrySpec describes a boot entry to create.
type EntrySpec struct {
	Device    string // the disk holding the EFI system partition, e.g. /dev/sda
	Partition int    // 1-based partition index of the EFI system partition
	Label     string
	Loader    string // path of the loader on the EFI system partition
}

func (s EntrySpec) String() string {
	return fmt.Sprintf("%q (%s partition %d, %s)", s.Label, s.Device, s.Partition, s.Loader)
}

// BootConfigStore abstracts away how the firmware boot configuration is
// accessed. Implementations must not cache: every call reflects the current
// firmware state.
type BootConfigStore interface {
	// List returns the boot entries in enumeration order.
	List(ctx context.Context) ([]BootEntry, error)
	// Create adds a new boot entry.
	Create(ctx context.Context, spec EntrySpec) error
	// Delete removes the boot entry with the given id.
	Delete(ctx context.Context, id string) error
	// SetEnabled toggles whether the firmware may boot the entry automatically.
	SetEnabled(ctx context.Context, id string, enabled bool) error
	// Order returns the current BootOrder.
	Order(ctx context.Context) ([]string, error)
	// SetOrder replaces BootOrder in a single write.
	SetOrder(ctx context.Context, order []string) error
	// SetNext sets BootNext for the upcoming boot.
	SetNext(ctx context.Context, id string) error
}

// NextReader is implemented by stores that can report BootNext. An empty id
// means BootNext is not set.
type NextReader interface {
	Next(ctx context.Context) (string, error)
}

// FindEntry returns the id of the first entry labelled label, or "" if there
// is none.
func FindEntry(ctx context.Context, store BootConfigStore, label string) (string, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return "", err
	}
	return entryID(entries, label), nil
}

func entryID(entries []BootEntry, label string) string {
	for _, entry := range entries {
		if entry.Label == label {
			return entry.ID
		}
	}
	return ""
}
