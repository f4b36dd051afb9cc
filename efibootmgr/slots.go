// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Slot identifies one of the two OS installations.
type Slot int

// Slots in the order their entries are rebuilt.
var Slots = [2]Slot{0, 1}

// Other returns the other slot.
func (s Slot) Other() Slot {
	return 1 - s
}

const (
	// DefaultLabelPrefix is the label prefix of the entries we own.
	DefaultLabelPrefix = "SEAPATH slot"
	// DefaultLoader is the loader path on each EFI system partition.
	DefaultLoader = "/EFI/BOOT/bootx64.efi"
)

// Config is what the controller needs to know about the target.
type Config struct {
	// Device is the disk the image was written to, e.g. /dev/sda.
	Device string
	// Loader is the boot loader path on the EFI system partitions.
	Loader string
	// LabelPrefix is followed by the slot number to form entry labels.
	LabelPrefix string
	// Partitions maps a slot to the index of its EFI system partition.
	Partitions [2]int
	// ActiveSlot is booted next and first in BootOrder. The other slot is
	// kept as a disabled fallback.
	ActiveSlot Slot
	// FallbackDirs optionally holds, per slot, the vendor directory of the
	// mounted EFI system partition where a shim fallback CSV is written, e.g.
	// /mnt/esp0/EFI/seapath. Shim's fallback loader skips \EFI\BOOT and
	// looks for the loader next to the CSV, so Loader must live in that
	// vendor directory for the CSV to be of any use.
	FallbackDirs [2]string
}

// DefaultConfig returns the standard layout: slot 0 on partition 1, slot 1 on
// partition 2, slot 0 active.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Loader:      DefaultLoader,
		LabelPrefix: DefaultLabelPrefix,
		Partitions:  [2]int{1, 2},
	}
}

// Label returns the label of the entry owned by slot.
func (c *Config) Label(slot Slot) string {
	return fmt.Sprintf("%s %d", c.LabelPrefix, slot)
}

// EntrySpec returns the entry to create for slot.
func (c *Config) EntrySpec(slot Slot) EntrySpec {
	return EntrySpec{
		Device:    c.Device,
		Partition: c.Partitions[slot],
		Label:     c.Label(slot),
		Loader:    c.Loader,
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("no target device")
	}
	if c.Loader == "" || !path.IsAbs(c.Loader) {
		return fmt.Errorf("loader path %q is not absolute", c.Loader)
	}
	if c.LabelPrefix == "" {
		return errors.New("empty label prefix")
	}
	for _, slot := range Slots {
		if c.Partitions[slot] < 1 {
			return fmt.Errorf("invalid partition %d for slot %d", c.Partitions[slot], slot)
		}
	}
	if c.Partitions[0] == c.Partitions[1] {
		return fmt.Errorf("both slots use partition %d", c.Partitions[0])
	}
	if c.ActiveSlot != 0 && c.ActiveSlot != 1 {
		return fmt.Errorf("invalid active slot %d", c.ActiveSlot)
	}
	for _, slot := range Slots {
		dir := c.FallbackDirs[slot]
		if dir != "" && strings.EqualFold(path.Base(dir), "BOOT") {
			return fmt.Errorf("fallback directory %s of slot %d is not a vendor directory", dir, slot)
		}
	}
	return nil
}
