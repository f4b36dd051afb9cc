// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// appFs is our default FS
var appFs afero.Fs = afero.NewOsFs()

// MaybeUpdateFile writes content to dst if dst does not already hold it.
// It returns true if the destination file was successfully updated. If the return value
// is false and an error is returned, the state of the destination is unspecified.
func MaybeUpdateFile(dst string, content []byte) (bool, error) {
	if needUpdate, err := needUpdateFile(dst, content); !needUpdate {
		return false, err
	}

	if err := appFs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("Could not create directory for %s: %w", dst, err)
	}

	dstFileWriter, err := appFs.Create(dst)
	if err != nil {
		return false, fmt.Errorf("Could not open %s for writing: %w", dst, err)
	}
	defer dstFileWriter.Close()

	if _, err := dstFileWriter.Write(content); err != nil {
		return false, fmt.Errorf("Could not write %s: %w", dst, err)
	}
	if err := dstFileWriter.Close(); err != nil {
		return false, fmt.Errorf("Could not write %s: %w", dst, err)
	}
	return true, nil
}

func needUpdateFile(dst string, content []byte) (bool, error) {
	// To keep things simple, but not have the files in memory, just hash them
	dstHash := sha256.New()

	dstFile, err := appFs.Open(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("Could not open destination file: %w", err)
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstHash, dstFile); err != nil {
		return false, fmt.Errorf("Could not hash destination file %s: %w", dst, err)
	}
	srcHash := sha256.Sum256(content)
	return !bytes.Equal(dstHash.Sum(nil), srcHash[:]), nil
}
