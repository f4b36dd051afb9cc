// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

// Package efivars builds the binary pieces of UEFI boot entries: device paths
// and load options.
package efivars

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/canonical/go-efilib"
	"golang.org/x/sys/unix"
)

const defaultBlockSize = 512

// blockDevice is the part of *os.File needed to read a partition table.
type blockDevice interface {
	io.ReaderAt
	io.Seeker
	io.Closer
	Fd() uintptr
}

var (
	osOpen = func(path string) (blockDevice, error) { return os.Open(path) }

	ioctlBlockSize = func(fd int) (int, error) { return unix.IoctlGetInt(fd, unix.BLKSSZGET) }
)

// LoaderFilePath converts a loader path as given on the command line
// (/EFI/BOOT/bootx64.efi) to the form stored in a device path
// (\EFI\BOOT\bootx64.efi).
func LoaderFilePath(loader string) efi.FilePathDevicePathNode {
	p := strings.ReplaceAll(loader, "/", "\\")
	if !strings.HasPrefix(p, "\\") {
		p = "\\" + p
	}
	return efi.FilePathDevicePathNode(p)
}

// NewDevicePath returns the short-form (HD) device path of loader on the given
// GPT partition of device.
func NewDevicePath(device string, partition int, loader string) (efi.DevicePath, error) {
	if partition < 1 {
		return nil, fmt.Errorf("invalid partition number %d", partition)
	}
	if loader == "" {
		return nil, errors.New("empty loader path")
	}

	f, err := osOpen(device)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", device, err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("cannot determine size of %s: %w", device, err)
	}

	// Disk images are not block devices, assume 512 byte sectors for them.
	blockSz := int64(defaultBlockSize)
	if sz, err := ioctlBlockSize(int(f.Fd())); err == nil && sz > 0 {
		blockSz = int64(sz)
	}

	hd, err := efi.NewHardDriveDevicePathNodeFromDevice(f, size, blockSz, partition)
	if err != nil {
		return nil, fmt.Errorf("cannot read partition %d of %s: %w", partition, device, err)
	}

	return efi.DevicePath{hd, LoaderFilePath(loader)}, nil
}
