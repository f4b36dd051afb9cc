// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FallbackEntry is a line of the shim fallback BOOT<ARCH>.CSV file.
type FallbackEntry struct {
	Filename    string
	Label       string
	Options     string
	Description string
}

// appArchitecture overrides the detected EFI architecture when not empty.
var appArchitecture string

// GetEfiArchitecture returns the EFI architecture suffix of the running system,
// as used in file names like BOOTX64.CSV or shimaa64.efi.
func GetEfiArchitecture() string {
	if appArchitecture != "" {
		return appArchitecture
	}
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	case "arm64":
		return "aa64"
	case "arm":
		return "arm"
	case "riscv64":
		return "riscv64"
	}
	return ""
}

// FallbackCSVName returns the name shim's fallback loader looks for.
func FallbackCSVName() string {
	return "BOOT" + strings.ToUpper(GetEfiArchitecture()) + ".CSV"
}

// WriteShimFallbackToFile encodes the entries in UTF-16LE and writes them to
// path, unless path already has that content. It returns whether the file
// was written.
func WriteShimFallbackToFile(path string, entries []FallbackEntry) (bool, error) {
	var buf bytes.Buffer
	writer := transform.NewWriter(&buf, unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder())
	if err := WriteShimFallback(writer, entries); err != nil {
		return false, err
	}
	if err := writer.Close(); err != nil {
		return false, fmt.Errorf("could not encode %s: %w", path, err)
	}
	return MaybeUpdateFile(path, buf.Bytes())
}

// WriteShimFallback writes out a BOOT*.CSV for the shim fallback loader to the specified writer.
// The output of this function is unencoded, use a transformed UTF-16 writer.
func WriteShimFallback(w io.Writer, entries []FallbackEntry) error {
	for _, entry := range entries {
		if strings.Contains(entry.Filename, ",") ||
			strings.Contains(entry.Label, ",") ||
			strings.Contains(entry.Options, ",") ||
			strings.Contains(entry.Description, ",") {
			return fmt.Errorf("entry '%s' contains ',' in one of the attributes, this is not supported", entry.Label)
		}

		_, err := fmt.Fprintf(w, "%s,%s,%s,%s\n", entry.Filename, entry.Label, entry.Options, entry.Description)
		if err != nil {
			return fmt.Errorf("Could not write entry '%s' to file: %w", entry.Label, err)
		}
	}

	return nil
}

// slotFallbackEntry is the fallback entry recreating the boot entry of a slot
// from its own EFI system partition.
func slotFallbackEntry(label, loader string) FallbackEntry {
	return FallbackEntry{
		Filename:    filepath.Base(loader),
		Label:       label,
		Description: "This is the boot entry for " + label,
	}
}
