// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/canonical/go-efilib"

	"github.com/seapath/abboot/efivars"
	"github.com/seapath/abboot/logger"
)

const (
	maxBootEntries = 65535 // Maximum number of boot entries we can hold

	defaultAttrs = efi.AttributeNonVolatile | efi.AttributeBootserviceAccess | efi.AttributeRuntimeAccess
)

// VarStore is a BootConfigStore writing the Boot####, BootOrder and BootNext
// variables directly, without efibootmgr.
type VarStore struct {
	vars EFIVariables
}

// NewVarStore returns a store backed by vars, or an error if variables
// cannot be accessed.
func NewVarStore(ctx context.Context, vars EFIVariables) (*VarStore, error) {
	if !variablesSupported(ctx, vars) {
		return nil, fmt.Errorf("Variables not supported")
	}
	return &VarStore{vars: vars}, nil
}

func bootVariableName(num int) string {
	return fmt.Sprintf("Boot%04X", num)
}

func parseBootID(id string) (int, error) {
	if !isBootNumber(id) {
		return -1, fmt.Errorf("invalid boot entry id %q", id)
	}
	num, err := strconv.ParseUint(id, 16, 16)
	if err != nil {
		return -1, fmt.Errorf("invalid boot entry id %q: %w", id, err)
	}
	return int(num), nil
}

// bootVariable is a Boot#### variable as listed by the firmware.
type bootVariable struct {
	num  int
	name string
}

// bootVariables lists the Boot#### variables. Only canonical names (four
// uppercase hex digits) are load options; lowercase ones are reported and
// ignored, as firmware ignores them too.
func (s *VarStore) bootVariables(ctx context.Context) ([]bootVariable, error) {
	names, err := getVariableNames(ctx, s.vars, efi.GlobalVariable)
	if err != nil {
		return nil, fmt.Errorf("cannot obtain list of global variables: %w", err)
	}
	var vars []bootVariable
	for _, name := range names {
		if len(name) != 8 || !strings.HasPrefix(name, "Boot") || !isBootNumber(name[4:]) {
			continue
		}
		if name[4:] != strings.ToUpper(name[4:]) {
			logger.Debugf("%s: ignoring non-canonical variable %s", ParseAnomaly, name)
			continue
		}
		num, err := strconv.ParseUint(name[4:], 16, 16)
		if err != nil {
			continue
		}
		vars = append(vars, bootVariable{num: int(num), name: name})
	}
	return vars, nil
}

// bootNumbers lists the numbers of the existing Boot#### variables.
func (s *VarStore) bootNumbers(ctx context.Context) ([]int, error) {
	vars, err := s.bootVariables(ctx)
	if err != nil {
		return nil, err
	}
	nums := make([]int, 0, len(vars))
	for _, v := range vars {
		nums = append(nums, v.num)
	}
	return nums, nil
}

// List reads every Boot#### variable.
func (s *VarStore) List(ctx context.Context) ([]BootEntry, error) {
	vars, err := s.bootVariables(ctx)
	if err != nil {
		return nil, err
	}

	var entries []BootEntry
	for _, v := range vars {
		data, _, err := s.vars.GetVariable(ctx, efi.GlobalVariable, v.name)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", v.name, err)
		}
		opt, err := efivars.ReadLoadOption(data)
		if err != nil {
			logger.Debugf("%s: invalid boot entry %s: %v", ParseAnomaly, v.name, err)
			continue
		}
		entries = append(entries, BootEntry{
			ID:     v.name[4:],
			Label:  opt.Description,
			Active: opt.Attributes&efi.LoadOptionActive != 0,
		})
	}
	return entries, nil
}

// nextFreeEntry returns the number of the next free Boot variable.
func nextFreeEntry(used []int) (int, error) {
	taken := make(map[int]bool, len(used))
	for _, num := range used {
		taken[num] = true
	}
	for i := 0; i < maxBootEntries; i++ {
		if !taken[i] {
			return i, nil
		}
	}

	return -1, fmt.Errorf("Maximum number of boot entries exceeded")
}

// Create writes a new active Boot#### variable and puts it first in
// BootOrder, as efibootmgr --create does.
func (s *VarStore) Create(ctx context.Context, spec EntrySpec) error {
	nums, err := s.bootNumbers(ctx)
	if err != nil {
		return err
	}
	num, err := nextFreeEntry(nums)
	if err != nil {
		return err
	}

	dp, err := s.vars.NewDevicePath(spec.Device, spec.Partition, spec.Loader)
	if err != nil {
		return fmt.Errorf("cannot create boot entry %s: %w", spec, err)
	}
	data, err := efivars.NewLoadOption(spec.Label, dp, true)
	if err != nil {
		return fmt.Errorf("cannot create boot entry %s: %w", spec, err)
	}
	if err := s.vars.SetVariable(ctx, efi.GlobalVariable, bootVariableName(num), data, defaultAttrs); err != nil {
		return fmt.Errorf("cannot create boot entry %s: %w", spec, err)
	}

	order, attrs, err := s.bootOrder(ctx)
	if err != nil {
		return err
	}
	newOrder := []int{num}
	for _, n := range order {
		if n != num {
			newOrder = append(newOrder, n)
		}
	}
	return s.writeBootOrder(ctx, newOrder, attrs)
}

// Delete removes the Boot#### variable and drops it from BootOrder.
func (s *VarStore) Delete(ctx context.Context, id string) error {
	num, err := parseBootID(id)
	if err != nil {
		return err
	}
	variable := bootVariableName(num)
	if err := delVariable(ctx, s.vars, efi.GlobalVariable, variable); err != nil {
		return fmt.Errorf("cannot delete %s: %w", variable, err)
	}

	order, attrs, err := s.bootOrder(ctx)
	if err != nil {
		return err
	}
	var newOrder []int
	for _, orderEntry := range order {
		if orderEntry != num {
			newOrder = append(newOrder, orderEntry)
		}
	}
	if len(newOrder) == len(order) {
		return nil
	}
	return s.writeBootOrder(ctx, newOrder, attrs)
}

// SetEnabled sets or clears LOAD_OPTION_ACTIVE on the entry.
func (s *VarStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	num, err := parseBootID(id)
	if err != nil {
		return err
	}
	variable := bootVariableName(num)
	data, attrs, err := s.vars.GetVariable(ctx, efi.GlobalVariable, variable)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", variable, err)
	}
	data, err = efivars.SetLoadOptionActive(data, enabled)
	if err != nil {
		return fmt.Errorf("cannot update %s: %w", variable, err)
	}
	return s.vars.SetVariable(ctx, efi.GlobalVariable, variable, data, attrs)
}

// bootOrder reads and decodes BootOrder. A missing BootOrder is empty.
func (s *VarStore) bootOrder(ctx context.Context) ([]int, efi.VariableAttributes, error) {
	data, attrs, err := s.vars.GetVariable(ctx, efi.GlobalVariable, "BootOrder")
	if errors.Is(err, efi.ErrVarNotExist) {
		return nil, defaultAttrs, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("cannot read BootOrder variable: %w", err)
	}
	order := make([]int, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		order[i/2] = int(binary.LittleEndian.Uint16(data[i : i+2]))
	}
	return order, attrs, nil
}

func (s *VarStore) writeBootOrder(ctx context.Context, order []int, attrs efi.VariableAttributes) error {
	output := make([]byte, 0, 2*len(order))
	for _, num := range order {
		output = binary.LittleEndian.AppendUint16(output, uint16(num))
	}
	if err := s.vars.SetVariable(ctx, efi.GlobalVariable, "BootOrder", output, attrs); err != nil {
		return fmt.Errorf("cannot write BootOrder variable: %w", err)
	}
	return nil
}

// Order returns BootOrder.
func (s *VarStore) Order(ctx context.Context) ([]string, error) {
	order, _, err := s.bootOrder(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(order))
	for i, num := range order {
		ids[i] = fmt.Sprintf("%04X", num)
	}
	return ids, nil
}

// SetOrder writes BootOrder. Ids without a Boot#### variable are rejected.
func (s *VarStore) SetOrder(ctx context.Context, order []string) error {
	nums, err := s.bootNumbers(ctx)
	if err != nil {
		return err
	}
	exists := make(map[int]bool, len(nums))
	for _, num := range nums {
		exists[num] = true
	}

	newOrder := make([]int, 0, len(order))
	for _, id := range order {
		num, err := parseBootID(id)
		if err != nil {
			return err
		}
		if !exists[num] {
			return fmt.Errorf("cannot set boot order: %s does not exist", bootVariableName(num))
		}
		newOrder = append(newOrder, num)
	}

	_, attrs, err := s.bootOrder(ctx)
	if err != nil {
		return err
	}
	return s.writeBootOrder(ctx, newOrder, attrs)
}

// SetNext writes BootNext.
func (s *VarStore) SetNext(ctx context.Context, id string) error {
	num, err := parseBootID(id)
	if err != nil {
		return err
	}
	data := binary.LittleEndian.AppendUint16(nil, uint16(num))
	if err := s.vars.SetVariable(ctx, efi.GlobalVariable, "BootNext", data, defaultAttrs); err != nil {
		return fmt.Errorf("cannot write BootNext variable: %w", err)
	}
	return nil
}

// Next reads BootNext.
func (s *VarStore) Next(ctx context.Context) (string, error) {
	data, _, err := s.vars.GetVariable(ctx, efi.GlobalVariable, "BootNext")
	if errors.Is(err, efi.ErrVarNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cannot read BootNext variable: %w", err)
	}
	if len(data) != 2 {
		return "", fmt.Errorf("invalid BootNext variable of size %d", len(data))
	}
	return fmt.Sprintf("%04X", binary.LittleEndian.Uint16(data)), nil
}
