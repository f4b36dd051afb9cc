// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efivars

import (
	"bytes"
	"errors"

	"github.com/canonical/go-efilib"
)

// NewLoadOption serializes a boot entry for storing in a Boot#### variable.
func NewLoadOption(desc string, path efi.DevicePath, active bool) ([]byte, error) {
	if desc == "" {
		return nil, errors.New("empty description")
	}
	opt := &efi.LoadOption{
		Description: desc,
		FilePath:    path,
	}
	if active {
		opt.Attributes |= efi.LoadOptionActive
	}
	return opt.Bytes()
}

// ReadLoadOption parses the payload of a Boot#### variable.
func ReadLoadOption(data []byte) (*efi.LoadOption, error) {
	return efi.ReadLoadOption(bytes.NewReader(data))
}

// SetLoadOptionActive returns a copy of the Boot#### payload data with the
// LOAD_OPTION_ACTIVE attribute set or cleared. The rest of the payload is
// preserved byte for byte.
func SetLoadOptionActive(data []byte, active bool) ([]byte, error) {
	// The attributes are the first (little-endian) UINT32 of EFI_LOAD_OPTION.
	if len(data) < 6 {
		return nil, errors.New("load option too short")
	}
	out := append([]byte(nil), data...)
	if active {
		out[0] |= byte(efi.LoadOptionActive)
	} else {
		out[0] &^= byte(efi.LoadOptionActive)
	}
	return out, nil
}
