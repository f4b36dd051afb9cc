// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"context"

	"github.com/canonical/go-efilib"

	"github.com/seapath/abboot/efivars"
)

// EFIVariables abstracts away the host-specific bits of variable access
type EFIVariables interface {
	ListVariables(ctx context.Context) ([]efi.VariableDescriptor, error)
	GetVariable(ctx context.Context, guid efi.GUID, name string) (data []byte, attrs efi.VariableAttributes, err error)
	SetVariable(ctx context.Context, guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error
	NewDevicePath(device string, partition int, loader string) (efi.DevicePath, error)
}

// RealEFIVariables provides the real implementation of efivars. The go-efilib
// default backend (efivarfs) is always used; ctx only carries cancellation.
type RealEFIVariables struct{}

// ListVariables proxy
func (RealEFIVariables) ListVariables(ctx context.Context) ([]efi.VariableDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return efi.ListVariables(efi.DefaultVarContext)
}

// GetVariable proxy
func (RealEFIVariables) GetVariable(ctx context.Context, guid efi.GUID, name string) (data []byte, attrs efi.VariableAttributes, err error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return efi.ReadVariable(efi.DefaultVarContext, name, guid)
}

// SetVariable proxy
func (RealEFIVariables) SetVariable(ctx context.Context, guid efi.GUID, name string, data []byte, attrs efi.VariableAttributes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return efi.WriteVariable(efi.DefaultVarContext, name, guid, attrs, data)
}

// NewDevicePath proxy
func (RealEFIVariables) NewDevicePath(device string, partition int, loader string) (efi.DevicePath, error) {
	return efivars.NewDevicePath(device, partition, loader)
}

// variablesSupported indicates whether variables can be accessed.
func variablesSupported(ctx context.Context, vars EFIVariables) bool {
	_, err := vars.ListVariables(ctx)
	return err == nil
}

// getVariableNames returns the names of every variable with the specified GUID.
func getVariableNames(ctx context.Context, vars EFIVariables, filterGUID efi.GUID) (names []string, err error) {
	descs, err := vars.ListVariables(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range descs {
		if entry.GUID != filterGUID {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}

// delVariable deletes the non-authenticated variable with the specified name.
func delVariable(ctx context.Context, vars EFIVariables, guid efi.GUID, name string) error {
	_, attrs, err := vars.GetVariable(ctx, guid, name)
	if err != nil {
		return err
	}
	return vars.SetVariable(ctx, guid, name, nil, attrs)
}
