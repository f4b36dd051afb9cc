// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/check.v1"

	"github.com/seapath/abboot/logger"
)

const mountsWithoutEfivarfs = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda2 / ext4 rw,relatime 0 0
`

type accessSuite struct {
	mapFsMixin

	guard  *AccessGuard
	mounts []string

	restoreLogger func()
}

var _ = check.Suite(&accessSuite{})

func (s *accessSuite) SetUpTest(c *check.C) {
	s.mapFsMixin.SetUpTest(c)
	_, s.restoreLogger = logger.MockLogger()

	s.mounts = nil
	s.guard = NewAccessGuard()
	s.guard.mount = func(source, target, fstype string, flags uintptr, data string) error {
		s.mounts = append(s.mounts, fmt.Sprintf("%s %s %s", source, target, fstype))
		return nil
	}
}

func (s *accessSuite) TearDownTest(c *check.C) {
	s.restoreLogger()
	s.mapFsMixin.TearDownTest(c)
}

func (s *accessSuite) writeMounts(c *check.C, content string) {
	c.Assert(afero.WriteFile(s.fs, "/proc/self/mounts", []byte(content), 0444), check.IsNil)
}

func (s *accessSuite) TestAlreadyMounted(c *check.C) {
	s.writeMounts(c, mountsWithoutEfivarfs+"efivarfs /sys/firmware/efi/efivars efivarfs rw,nosuid,nodev,noexec,relatime 0 0\n")

	c.Assert(s.guard.EnsureAccess(), check.IsNil)
	c.Check(s.mounts, check.HasLen, 0)
}

func (s *accessSuite) TestMounts(c *check.C) {
	s.writeMounts(c, mountsWithoutEfivarfs)

	c.Assert(s.guard.EnsureAccess(), check.IsNil)
	c.Check(s.mounts, check.DeepEquals, []string{"efivarfs /sys/firmware/efi/efivars efivarfs"})
}

func (s *accessSuite) TestMountFails(c *check.C) {
	s.writeMounts(c, mountsWithoutEfivarfs)
	s.guard.mount = func(source, target, fstype string, flags uintptr, data string) error {
		return errors.New("no such device")
	}

	err := s.guard.EnsureAccess()
	c.Check(err, check.ErrorMatches, "cannot mount efivarfs on /sys/firmware/efi/efivars: no such device")
	c.Check(IsKind(err, AccessUnavailable), check.Equals, true)

	title, _ := TitleAndMessage(err)
	c.Check(title, check.Equals, "NVRAM unavailable")
}

func (s *accessSuite) TestNoMountTable(c *check.C) {
	err := s.guard.EnsureAccess()
	c.Check(err, check.ErrorMatches, "cannot check whether /sys/firmware/efi/efivars is mounted: .*")
	c.Check(IsKind(err, AccessUnavailable), check.Equals, true)
	c.Check(s.mounts, check.HasLen, 0)
}

func (s *accessSuite) TestEscapedMountPoint(c *check.C) {
	s.guard.MountPoint = "/mnt/my vars"
	s.writeMounts(c, mountsWithoutEfivarfs+`efivarfs /mnt/my\040vars efivarfs rw 0 0`+"\n")

	c.Assert(s.guard.EnsureAccess(), check.IsNil)
	c.Check(s.mounts, check.HasLen, 0)
}

func (s *accessSuite) TestUnescapeMountPath(c *check.C) {
	for _, t := range []struct{ in, out string }{
		{"/sys/firmware/efi/efivars", "/sys/firmware/efi/efivars"},
		{`/mnt/a\040b`, "/mnt/a b"},
		{`/mnt/tab\011`, "/mnt/tab\t"},
		{`/mnt/short\04`, `/mnt/short\04`},
		{`/mnt/x\134y`, `/mnt/x\y`},
		{`/mnt/bad\9zz`, `/mnt/bad\9zz`},
	} {
		c.Check(unescapeMountPath(t.in), check.Equals, t.out, check.Commentf("%s", t.in))
	}
}
