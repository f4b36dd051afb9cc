// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

// This file does not contain actual tests, but contains mock implementations of EFIVariables

package efibootmgr

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/go-efilib"

	"github.com/seapath/abboot/efivars"
)

type NoEFIVariables struct{}

func (NoEFIVariables) ListVariables(ctx context.Context) ([]efi.VariableDescriptor, error) {
	return nil, efi.ErrVarsUnavailable
}

func (NoEFIVariables) GetVariable(ctx context.Context, guid efi.GUID, name string) ([]byte, efi.VariableAttributes, error) {
	return nil, 0, efi.ErrVarsUnavailable
}

func (NoEFIVariables) SetVariable(ctx context.Context, guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error {
	return efi.ErrVarsUnavailable
}

func (NoEFIVariables) NewDevicePath(device string, partition int, loader string) (efi.DevicePath, error) {
	return nil, errors.New("Cannot access")
}

type mockEFIVariable struct {
	data  []byte
	attrs efi.VariableAttributes
}

type MockEFIVariables struct {
	store map[efi.VariableDescriptor]mockEFIVariable
	// devicePaths records the (device, partition) of every device path created
	devicePaths []string
	// failWrites makes SetVariable fail for the named variable
	failWrites map[string]error
}

func (m *MockEFIVariables) ListVariables(ctx context.Context) (out []efi.VariableDescriptor, err error) {
	for k := range m.store {
		out = append(out, k)
	}
	return out, nil
}

func (m *MockEFIVariables) GetVariable(ctx context.Context, guid efi.GUID, name string) (data []byte, attrs efi.VariableAttributes, err error) {
	out, ok := m.store[efi.VariableDescriptor{Name: name, GUID: guid}]
	if !ok {
		return nil, 0, efi.ErrVarNotExist
	}
	return out.data, out.attrs, nil
}

func (m *MockEFIVariables) SetVariable(ctx context.Context, guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error {
	if err := m.failWrites[name]; err != nil {
		return err
	}
	if m.store == nil {
		m.store = make(map[efi.VariableDescriptor]mockEFIVariable)
	}
	if len(data) == 0 {
		delete(m.store, efi.VariableDescriptor{Name: name, GUID: guid})
	} else {
		m.store[efi.VariableDescriptor{Name: name, GUID: guid}] = mockEFIVariable{data, attrs}
	}
	return nil
}

func (m *MockEFIVariables) NewDevicePath(device string, partition int, loader string) (efi.DevicePath, error) {
	if _, err := appFs.Stat(device); err != nil {
		return nil, err
	}
	m.devicePaths = append(m.devicePaths, fmt.Sprintf("%s:%d", device, partition))
	return efi.DevicePath{efivars.LoaderFilePath(loader)}, nil
}

// mockBootEntry stores a Boot#### variable holding a load option labelled label.
func (m *MockEFIVariables) mockBootEntry(num int, label string, active bool) {
	data, err := efivars.NewLoadOption(label, efi.DevicePath{efivars.LoaderFilePath("/EFI/BOOT/bootx64.efi")}, active)
	if err != nil {
		panic(err)
	}
	m.SetVariable(context.Background(), efi.GlobalVariable, bootVariableName(num), data, defaultAttrs)
}

// mockBootOrder stores BootOrder.
func (m *MockEFIVariables) mockBootOrder(nums ...uint16) {
	var data []byte
	for _, num := range nums {
		data = append(data, byte(num), byte(num>>8))
	}
	m.SetVariable(context.Background(), efi.GlobalVariable, "BootOrder", data, defaultAttrs)
}

func (m *MockEFIVariables) variable(name string) []byte {
	return m.store[efi.VariableDescriptor{Name: name, GUID: efi.GlobalVariable}].data
}
