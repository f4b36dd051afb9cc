// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ToolStore is a BootConfigStore backed by the efibootmgr command.
type ToolStore struct {
	runner Runner
	tool   string
}

// NewToolStore returns a store running efibootmgr through runner. An empty
// tool selects "efibootmgr" from PATH.
func NewToolStore(runner Runner, tool string) *ToolStore {
	if tool == "" {
		tool = "efibootmgr"
	}
	return &ToolStore{runner: runner, tool: tool}
}

func (s *ToolStore) run(ctx context.Context, args ...string) ([]byte, error) {
	res := s.runner.Run(ctx, s.tool, args...)
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Output, nil
}

func (s *ToolStore) listing(ctx context.Context) (Listing, error) {
	out, err := s.run(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("cannot list boot entries: %w", err)
	}
	return ParseListing(out), nil
}

// List runs efibootmgr and returns the entries it reports.
func (s *ToolStore) List(ctx context.Context) ([]BootEntry, error) {
	l, err := s.listing(ctx)
	if err != nil {
		return nil, err
	}
	return l.Entries, nil
}

// Order returns BootOrder as reported by efibootmgr.
func (s *ToolStore) Order(ctx context.Context) ([]string, error) {
	l, err := s.listing(ctx)
	if err != nil {
		return nil, err
	}
	return l.Order, nil
}

// Next returns BootNext as reported by efibootmgr.
func (s *ToolStore) Next(ctx context.Context) (string, error) {
	l, err := s.listing(ctx)
	if err != nil {
		return "", err
	}
	return l.Next, nil
}

// Create adds a boot entry. efibootmgr puts the new entry first in BootOrder.
func (s *ToolStore) Create(ctx context.Context, spec EntrySpec) error {
	_, err := s.run(ctx, "-q", "-c",
		"-d", spec.Device,
		"-p", strconv.Itoa(spec.Partition),
		"-L", spec.Label,
		"-l", spec.Loader)
	if err != nil {
		return fmt.Errorf("cannot create boot entry %s: %w", spec, err)
	}
	return nil
}

// Delete removes the entry, which efibootmgr also drops from BootOrder.
func (s *ToolStore) Delete(ctx context.Context, id string) error {
	if _, err := s.run(ctx, "-q", "-b", id, "-B"); err != nil {
		return fmt.Errorf("cannot delete boot entry Boot%s: %w", id, err)
	}
	return nil
}

// SetEnabled marks the entry active or inactive.
func (s *ToolStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	flag, what := "-A", "disable"
	if enabled {
		flag, what = "-a", "enable"
	}
	if _, err := s.run(ctx, "-q", "-b", id, flag); err != nil {
		return fmt.Errorf("cannot %s boot entry Boot%s: %w", what, id, err)
	}
	return nil
}

// SetOrder writes BootOrder with one efibootmgr invocation.
func (s *ToolStore) SetOrder(ctx context.Context, order []string) error {
	if _, err := s.run(ctx, "-q", "-o", strings.Join(order, ",")); err != nil {
		return fmt.Errorf("cannot set boot order: %w", err)
	}
	return nil
}

// SetNext sets BootNext.
func (s *ToolStore) SetNext(ctx context.Context, id string) error {
	if _, err := s.run(ctx, "-q", "-n", id); err != nil {
		return fmt.Errorf("cannot set next boot to Boot%s: %w", id, err)
	}
	return nil
}
