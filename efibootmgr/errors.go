// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies controller failures.
type ErrorKind int

const (
	// AccessUnavailable means the firmware variable store cannot be reached or mounted.
	AccessUnavailable ErrorKind = iota + 1
	// EntryMutationFailed means a create, delete, enable/disable or order write failed.
	EntryMutationFailed
	// InvariantViolation means firmware state contradicts what the controller just did.
	InvariantViolation
	// ParseAnomaly is a listing line that could not be understood. It is never fatal.
	ParseAnomaly
)

func (k ErrorKind) String() string {
	switch k {
	case AccessUnavailable:
		return "access-unavailable"
	case EntryMutationFailed:
		return "entry-mutation-failed"
	case InvariantViolation:
		return "invariant-violation"
	case ParseAnomaly:
		return "parse-anomaly"
	default:
		return fmt.Sprintf("unknown-kind-%d", int(k))
	}
}

// Error is returned by the controller. Title is a short summary meant for the
// installer's error dialog, Error() the descriptive message.
type Error struct {
	Kind  ErrorKind
	Title string
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, title string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Title: title, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err carries a controller error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// TitleAndMessage splits err into the (title, message) pair reported to the
// installer. Errors not raised by the controller get a generic title.
func TitleAndMessage(err error) (title, message string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Title, e.Error()
	}
	return "Boot configuration failed", err.Error()
}
