// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/seapath/abboot/logger"
)

// State is the progress of a controller run.
type State int

const (
	Uninitialized State = iota
	EntriesRebuilt
	OrderReconciled
	NextBootSet
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case EntriesRebuilt:
		return "entries-rebuilt"
	case OrderReconciled:
		return "order-reconciled"
	case NextBootSet:
		return "next-boot-set"
	default:
		return fmt.Sprintf("state-%d", int(s))
	}
}

// Controller (re)creates the boot entries of both slots and orders them so
// that the active slot boots, with the passive slot as a disabled fallback.
//
// A run that fails can simply be repeated: every step starts from whatever
// firmware state the previous run left.
type Controller struct {
	store BootConfigStore
	guard Guard
	cfg   Config
	state State
}

// NewController returns a controller applying cfg through store. guard is
// consulted before any access to the store.
func NewController(store BootConfigStore, guard Guard, cfg Config) *Controller {
	return &Controller{store: store, guard: guard, cfg: cfg}
}

// State returns the last state reached.
func (c *Controller) State() State {
	return c.state
}

// Run performs the whole sequence. Errors are of type *Error.
func (c *Controller) Run(ctx context.Context) error {
	c.state = Uninitialized

	if err := c.cfg.Validate(); err != nil {
		return newError(InvariantViolation, "Invalid boot configuration", "%w", err)
	}
	if _, err := appFs.Stat(c.cfg.Device); err != nil {
		return newError(InvariantViolation, "Invalid target",
			"cannot use target device %s: %w", c.cfg.Device, err)
	}
	if err := c.guard.EnsureAccess(); err != nil {
		return err
	}

	if err := c.rebuildEntries(ctx); err != nil {
		return err
	}
	c.state = EntriesRebuilt

	activeID, err := c.reconcileOrder(ctx)
	if err != nil {
		return err
	}
	c.state = OrderReconciled

	if err := c.store.SetNext(ctx, activeID); err != nil {
		return newError(EntryMutationFailed, "Cannot set next boot entry", "%w", err)
	}
	c.state = NextBootSet
	logger.Noticef("next boot set to Boot%s", activeID)

	return c.writeFallbacks()
}

func (c *Controller) findEntry(ctx context.Context, slot Slot) (string, error) {
	id, err := FindEntry(ctx, c.store, c.cfg.Label(slot))
	if err != nil {
		return "", newError(AccessUnavailable, "Cannot read boot entries", "%w", err)
	}
	return id, nil
}

// DeleteEntry removes the entry of slot. A missing entry is not an error.
func (c *Controller) DeleteEntry(ctx context.Context, slot Slot) error {
	id, err := c.findEntry(ctx, slot)
	if err != nil {
		return err
	}
	if id == "" {
		logger.Debugf("no boot entry for slot %d", slot)
		return nil
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return newError(EntryMutationFailed, "Cannot delete boot entry", "%w", err)
	}
	logger.Noticef("deleted boot entry Boot%s of slot %d", id, slot)
	return nil
}

// CreateEntry creates the entry of slot.
func (c *Controller) CreateEntry(ctx context.Context, slot Slot) error {
	spec := c.cfg.EntrySpec(slot)
	if err := c.store.Create(ctx, spec); err != nil {
		return newError(EntryMutationFailed, "Cannot create boot entry", "%w", err)
	}
	logger.Noticef("created boot entry %s", spec)
	return nil
}

func (c *Controller) rebuildEntries(ctx context.Context) error {
	for _, slot := range Slots {
		if err := c.DeleteEntry(ctx, slot); err != nil {
			return err
		}
		if err := c.CreateEntry(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

// reconcileOrder disables the passive entry and moves both entries to the
// front of BootOrder, active first. It returns the active entry id.
func (c *Controller) reconcileOrder(ctx context.Context) (string, error) {
	active, passive := c.cfg.ActiveSlot, c.cfg.ActiveSlot.Other()

	entries, err := c.store.List(ctx)
	if err != nil {
		return "", newError(AccessUnavailable, "Cannot read boot entries", "%w", err)
	}
	activeID := entryID(entries, c.cfg.Label(active))
	passiveID := entryID(entries, c.cfg.Label(passive))
	switch {
	case activeID == "":
		return "", newError(InvariantViolation, "Boot entry missing",
			"boot entry %q not found after creating it", c.cfg.Label(active))
	case passiveID == "":
		return "", newError(InvariantViolation, "Boot entry missing",
			"boot entry %q not found after creating it", c.cfg.Label(passive))
	case activeID == passiveID:
		return "", newError(InvariantViolation, "Inconsistent boot entries",
			"slots %d and %d both resolve to Boot%s", active, passive, activeID)
	}

	if err := c.store.SetEnabled(ctx, passiveID, false); err != nil {
		return "", newError(EntryMutationFailed, "Cannot disable fallback boot entry", "%w", err)
	}

	current, err := c.store.Order(ctx)
	if err != nil {
		return "", newError(AccessUnavailable, "Cannot read boot order", "%w", err)
	}
	order := ReconcileOrder(existingIDs(current, entries), activeID, passiveID)
	if err := c.store.SetOrder(ctx, order); err != nil {
		return "", newError(EntryMutationFailed, "Cannot set boot order", "%w", err)
	}
	logger.Noticef("boot order set to %s", strings.Join(order, ","))

	return activeID, nil
}

// ReconcileOrder returns [activeID, passiveID] followed by the other ids of
// current, in their original relative order.
func ReconcileOrder(current []string, activeID, passiveID string) []string {
	order := []string{activeID, passiveID}
	seen := map[string]bool{activeID: true, passiveID: true}
	for _, id := range current {
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	return order
}

// existingIDs drops the ids of order that have no entry. Firmware often
// keeps such ids after an entry was removed behind its back.
func existingIDs(order []string, entries []BootEntry) []string {
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.ID] = true
	}
	var out []string
	for _, id := range order {
		if !known[id] {
			logger.Noticef("dropping Boot%s from boot order: no such entry", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (c *Controller) writeFallbacks() error {
	for _, slot := range Slots {
		dir := c.cfg.FallbackDirs[slot]
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, FallbackCSVName())
		entries := []FallbackEntry{slotFallbackEntry(c.cfg.Label(slot), c.cfg.Loader)}
		updated, err := WriteShimFallbackToFile(path, entries)
		if err != nil {
			return newError(EntryMutationFailed, "Cannot write fallback boot file", "%w", err)
		}
		if updated {
			logger.Noticef("wrote %s", path)
		}
	}
	return nil
}
