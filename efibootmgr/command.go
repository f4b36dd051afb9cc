// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single external command invocation.
const DefaultCommandTimeout = 30 * time.Second

// CommandResult is the outcome of one external command. A result is either
// Ok (exit status zero, Output holds stdout) or Failed (ExitCode and Stderr
// describe the failure). ExitCode is -1 when the process could not be started
// or was killed, e.g. on timeout.
type CommandResult struct {
	Args     []string
	Output   []byte
	Stderr   []byte
	ExitCode int
	cause    error
}

// Ok returns whether the command exited successfully.
func (r CommandResult) Ok() bool {
	return r.ExitCode == 0 && r.cause == nil
}

// Err returns nil for a successful result, or a *CommandError otherwise.
func (r CommandResult) Err() error {
	if r.Ok() {
		return nil
	}
	return &CommandError{Args: r.Args, ExitCode: r.ExitCode, Stderr: strings.TrimSpace(string(r.Stderr)), cause: r.cause}
}

// CommandError describes a failed command.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	cause    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%q failed with exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.cause }

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) CommandResult
}

// ExecRunner runs commands on the host. Each call is bounded by Timeout
// unless it is zero.
type ExecRunner struct {
	Timeout time.Duration
}

// Run executes name with args and collects its result.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) CommandResult {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := CommandResult{Args: append([]string{name}, args...)}
	err := cmd.Run()
	res.Output = stdout.Bytes()
	res.Stderr = stderr.Bytes()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.ExitCode = -1
		res.cause = fmt.Errorf("command interrupted: %w", ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.cause = err
	}
	return res
}
