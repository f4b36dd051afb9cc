// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"context"
	"errors"

	"github.com/canonical/go-efilib"
	"gopkg.in/check.v1"

	"github.com/seapath/abboot/efivars"
	"github.com/seapath/abboot/logger"
)

type varStoreSuite struct {
	mapFsMixin

	vars  *MockEFIVariables
	store *VarStore

	restoreLogger func()
}

var _ = check.Suite(&varStoreSuite{})

func (s *varStoreSuite) SetUpTest(c *check.C) {
	s.mapFsMixin.SetUpTest(c)
	_, s.restoreLogger = logger.MockLogger()

	s.vars = &MockEFIVariables{}
	s.vars.mockBootEntry(1, "Windows Boot Manager", true)
	s.vars.mockBootEntry(2, "Linux", true)
	s.vars.mockBootOrder(1, 2)
	s.vars.SetVariable(context.Background(), efi.GlobalVariable, "BootCurrent", []byte{1, 0}, defaultAttrs)

	var err error
	s.store, err = NewVarStore(context.Background(), s.vars)
	c.Assert(err, check.IsNil)
}

func (s *varStoreSuite) TearDownTest(c *check.C) {
	s.restoreLogger()
	s.mapFsMixin.TearDownTest(c)
}

func (s *varStoreSuite) TestUnsupported(c *check.C) {
	_, err := NewVarStore(context.Background(), NoEFIVariables{})
	c.Check(err, check.ErrorMatches, "Variables not supported")
}

func (s *varStoreSuite) TestList(c *check.C) {
	// not a load option
	s.vars.SetVariable(context.Background(), efi.GlobalVariable, "Boot0007", []byte{1, 2, 3}, defaultAttrs)
	s.vars.mockBootEntry(5, "Disabled", false)

	entries, err := s.store.List(context.Background())
	c.Assert(err, check.IsNil)
	// map iteration order is random
	byID := make(map[string]BootEntry)
	for _, e := range entries {
		byID[e.ID] = e
	}
	c.Check(byID, check.DeepEquals, map[string]BootEntry{
		"0001": {ID: "0001", Label: "Windows Boot Manager", Active: true},
		"0002": {ID: "0002", Label: "Linux", Active: true},
		"0005": {ID: "0005", Label: "Disabled", Active: false},
	})
}

func (s *varStoreSuite) TestCreate(c *check.C) {
	ctx := context.Background()
	err := s.store.Create(ctx, EntrySpec{Device: "/dev/sda", Partition: 2, Label: "SEAPATH slot 1", Loader: "/EFI/BOOT/bootx64.efi"})
	c.Assert(err, check.IsNil)

	c.Check(s.vars.devicePaths, check.DeepEquals, []string{"/dev/sda:2"})
	boot0000, ok := s.vars.store[efi.VariableDescriptor{Name: "Boot0000", GUID: efi.GlobalVariable}]
	c.Assert(ok, check.Equals, true)
	c.Check(boot0000.attrs, check.Equals, efi.AttributeNonVolatile|efi.AttributeBootserviceAccess|efi.AttributeRuntimeAccess)

	id, err := FindEntry(ctx, s.store, "SEAPATH slot 1")
	c.Assert(err, check.IsNil)
	c.Check(id, check.Equals, "0000")

	order, err := s.store.Order(ctx)
	c.Assert(err, check.IsNil)
	c.Check(order, check.DeepEquals, []string{"0000", "0001", "0002"})
}

func (s *varStoreSuite) TestCreateMissingDevice(c *check.C) {
	err := s.store.Create(context.Background(), EntrySpec{Device: "/dev/sdz", Partition: 1, Label: "SEAPATH slot 0", Loader: "/EFI/BOOT/bootx64.efi"})
	c.Check(err, check.ErrorMatches, `cannot create boot entry "SEAPATH slot 0" \(/dev/sdz partition 1, /EFI/BOOT/bootx64.efi\): .*`)
	c.Check(s.vars.variable("Boot0000"), check.IsNil)
}

func (s *varStoreSuite) TestDelete(c *check.C) {
	ctx := context.Background()
	c.Assert(s.store.Delete(ctx, "0001"), check.IsNil)

	c.Check(s.vars.variable("Boot0001"), check.IsNil)
	c.Check(s.vars.variable("BootOrder"), check.DeepEquals, []byte{2, 0})

	err := s.store.Delete(ctx, "0001")
	c.Check(err, check.ErrorMatches, "cannot delete Boot0001: .*")
	c.Check(errors.Is(err, efi.ErrVarNotExist), check.Equals, true)
}

func (s *varStoreSuite) TestDeleteInvalidID(c *check.C) {
	c.Check(s.store.Delete(context.Background(), "xyz"), check.ErrorMatches, `invalid boot entry id "xyz"`)
}

func (s *varStoreSuite) TestSetEnabled(c *check.C) {
	ctx := context.Background()
	before := append([]byte(nil), s.vars.variable("Boot0002")...)

	c.Assert(s.store.SetEnabled(ctx, "0002", false), check.IsNil)
	entries, err := s.store.List(ctx)
	c.Assert(err, check.IsNil)
	for _, e := range entries {
		c.Check(e.Active, check.Equals, e.ID != "0002", check.Commentf("%s", e.ID))
	}

	c.Assert(s.store.SetEnabled(ctx, "0002", true), check.IsNil)
	c.Check(s.vars.variable("Boot0002"), check.DeepEquals, before)
}

func (s *varStoreSuite) TestSetOrder(c *check.C) {
	ctx := context.Background()
	c.Assert(s.store.SetOrder(ctx, []string{"0002", "0001"}), check.IsNil)
	c.Check(s.vars.variable("BootOrder"), check.DeepEquals, []byte{2, 0, 1, 0})

	err := s.store.SetOrder(ctx, []string{"0002", "0009"})
	c.Check(err, check.ErrorMatches, "cannot set boot order: Boot0009 does not exist")
	c.Check(s.vars.variable("BootOrder"), check.DeepEquals, []byte{2, 0, 1, 0})
}

func (s *varStoreSuite) TestNext(c *check.C) {
	ctx := context.Background()
	next, err := s.store.Next(ctx)
	c.Assert(err, check.IsNil)
	c.Check(next, check.Equals, "")

	c.Assert(s.store.SetNext(ctx, "000A"), check.IsNil)
	c.Check(s.vars.variable("BootNext"), check.DeepEquals, []byte{10, 0})

	next, err = s.store.Next(ctx)
	c.Assert(err, check.IsNil)
	c.Check(next, check.Equals, "000A")
}

func (s *varStoreSuite) TestWriteFailure(c *check.C) {
	s.vars.failWrites = map[string]error{"BootNext": errors.New("read-only filesystem")}
	err := s.store.SetNext(context.Background(), "0001")
	c.Check(err, check.ErrorMatches, "cannot write BootNext variable: read-only filesystem")
}

func (s *varStoreSuite) TestNextFreeEntry(c *check.C) {
	num, err := nextFreeEntry([]int{0, 1, 3})
	c.Assert(err, check.IsNil)
	c.Check(num, check.Equals, 2)
}

func (s *varStoreSuite) TestControllerScenario(c *check.C) {
	ctx := context.Background()
	ctrl := NewController(s.store, &mockGuard{}, DefaultConfig("/dev/sda"))

	for i := 0; i < 2; i++ {
		c.Assert(ctrl.Run(ctx), check.IsNil)

		// Boot0000 is free, so slot 0 takes it
		order, err := s.store.Order(ctx)
		c.Assert(err, check.IsNil)
		c.Check(order, check.DeepEquals, []string{"0000", "0003", "0001", "0002"})

		next, err := s.store.Next(ctx)
		c.Assert(err, check.IsNil)
		c.Check(next, check.Equals, "0000")

		entries, err := s.store.List(ctx)
		c.Assert(err, check.IsNil)
		c.Check(entries, check.HasLen, 4)
		for _, e := range entries {
			c.Check(e.Active, check.Equals, e.Label != "SEAPATH slot 1", check.Commentf("%+v", e))
		}
	}

	c.Check(s.vars.devicePaths, check.DeepEquals, []string{"/dev/sda:1", "/dev/sda:2", "/dev/sda:1", "/dev/sda:2"})
}

func (s *varStoreSuite) TestNonCanonicalNamesIgnored(c *check.C) {
	ctx := context.Background()
	for _, name := range []string{"Boot000a", "Boot000G", "Boot00-1"} {
		data, err := efivars.NewLoadOption("Vendor "+name, efi.DevicePath{efivars.LoaderFilePath("/EFI/vendor/boot.efi")}, true)
		c.Assert(err, check.IsNil)
		s.vars.SetVariable(ctx, efi.GlobalVariable, name, data, defaultAttrs)
	}

	entries, err := s.store.List(ctx)
	c.Assert(err, check.IsNil)
	c.Check(entries, check.HasLen, 2)
	for _, e := range entries {
		c.Check(e.ID == "0001" || e.ID == "0002", check.Equals, true, check.Commentf("%+v", e))
	}

	ctrl := NewController(s.store, &mockGuard{}, DefaultConfig("/dev/sda"))
	c.Assert(ctrl.Run(ctx), check.IsNil)

	// Boot0000 is not aliased by Boot000G or Boot00-1
	order, err := s.store.Order(ctx)
	c.Assert(err, check.IsNil)
	c.Check(order, check.DeepEquals, []string{"0000", "0003", "0001", "0002"})
	for _, name := range []string{"Boot000a", "Boot000G", "Boot00-1"} {
		c.Check(s.vars.variable(name), check.NotNil, check.Commentf("%s", name))
	}
}

func (s *varStoreSuite) TestDanglingOrderEntry(c *check.C) {
	ctx := context.Background()
	s.vars.mockBootOrder(1, 9, 2)

	ctrl := NewController(s.store, &mockGuard{}, DefaultConfig("/dev/sda"))
	c.Assert(ctrl.Run(ctx), check.IsNil)

	order, err := s.store.Order(ctx)
	c.Assert(err, check.IsNil)
	c.Check(order, check.DeepEquals, []string{"0000", "0003", "0001", "0002"})
}
