// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the abboot configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/seapath/abboot/efibootmgr"
)

// Backends
const (
	BackendEfibootmgr = "efibootmgr"
	BackendEfivarfs   = "efivarfs"
)

// DefaultPath is where the configuration is read from unless told otherwise.
const DefaultPath = "/etc/abboot/config.yaml"

var appFs = afero.NewOsFs()

// Config is the on-disk configuration.
//
//	device: /dev/sda
//	partitions: [1, 2]
//	active-slot: 0
//	backend: efibootmgr
//	command-timeout: 30s
type Config struct {
	Device      string `yaml:"device"`
	Loader      string `yaml:"loader"`
	LabelPrefix string `yaml:"label-prefix"`
	Partitions  []int  `yaml:"partitions"`
	ActiveSlot  int    `yaml:"active-slot"`
	// Backend is either efibootmgr (run the tool) or efivarfs (write the
	// variables directly).
	Backend        string        `yaml:"backend"`
	CommandTimeout time.Duration `yaml:"command-timeout"`
	Efibootmgr     string        `yaml:"efibootmgr"`
	FallbackDirs   []string      `yaml:"fallback-dirs"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Loader:         efibootmgr.DefaultLoader,
		LabelPrefix:    efibootmgr.DefaultLabelPrefix,
		Partitions:     []int{1, 2},
		Backend:        BackendEfibootmgr,
		CommandTimeout: efibootmgr.DefaultCommandTimeout,
		Efibootmgr:     "efibootmgr",
	}
}

// Load reads the configuration at path on top of the defaults. A missing file
// is not an error when optional is set.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(appFs, path)
	if optional && errors.Is(err, afero.ErrFileNotFound) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that the controller does not check itself.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendEfibootmgr, BackendEfivarfs:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if len(c.Partitions) != 2 {
		return fmt.Errorf("expected 2 partitions, got %d", len(c.Partitions))
	}
	if len(c.FallbackDirs) > 2 {
		return fmt.Errorf("expected at most 2 fallback directories, got %d", len(c.FallbackDirs))
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("negative command timeout %v", c.CommandTimeout)
	}
	cfg := c.Controller()
	return cfg.Validate()
}

// Controller returns the controller configuration.
func (c *Config) Controller() efibootmgr.Config {
	cfg := efibootmgr.Config{
		Device:      c.Device,
		Loader:      c.Loader,
		LabelPrefix: c.LabelPrefix,
		ActiveSlot:  efibootmgr.Slot(c.ActiveSlot),
	}
	copy(cfg.Partitions[:], c.Partitions)
	copy(cfg.FallbackDirs[:], c.FallbackDirs)
	return cfg
}
