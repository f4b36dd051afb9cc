// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"github.com/seapath/abboot/logger"
)

const (
	// EfivarsMountPoint is where the kernel exposes firmware variables.
	EfivarsMountPoint = "/sys/firmware/efi/efivars"
	// EfivarsFsType is the filesystem type of the firmware variable store.
	EfivarsFsType = "efivarfs"

	mountTable = "/proc/self/mounts"
)

// Guard ensures the firmware variable store can be used.
type Guard interface {
	EnsureAccess() error
}

// AccessGuard mounts efivarfs when it is not mounted yet.
type AccessGuard struct {
	MountPoint string
	MountTable string

	fs    afero.Fs
	mount func(source, target, fstype string, flags uintptr, data string) error
}

// NewAccessGuard returns a guard for the default efivarfs mount point.
func NewAccessGuard() *AccessGuard {
	return &AccessGuard{
		MountPoint: EfivarsMountPoint,
		MountTable: mountTable,
		fs:         appFs,
		mount:      unix.Mount,
	}
}

// mounted reports whether the mount table has an entry for MountPoint.
func (g *AccessGuard) mounted() (bool, error) {
	f, err := g.fs.Open(g.MountTable)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 3 && unescapeMountPath(fields[1]) == g.MountPoint {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// EnsureAccess mounts the variable store if needed. Calling it when the store
// is already mounted does nothing.
func (g *AccessGuard) EnsureAccess() error {
	ok, err := g.mounted()
	if err != nil {
		return newError(AccessUnavailable, "NVRAM unavailable",
			"cannot check whether %s is mounted: %w", g.MountPoint, err)
	}
	if ok {
		logger.Debugf("%s already mounted", g.MountPoint)
		return nil
	}

	logger.Noticef("mounting %s on %s", EfivarsFsType, g.MountPoint)
	if err := g.mount(EfivarsFsType, g.MountPoint, EfivarsFsType, 0, ""); err != nil {
		return newError(AccessUnavailable, "NVRAM unavailable",
			"cannot mount %s on %s: %w", EfivarsFsType, g.MountPoint, err)
	}
	return nil
}

// unescapeMountPath decodes the octal escapes (\040 for space, ...) the
// kernel uses for mount paths.
func unescapeMountPath(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if c, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(c))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
