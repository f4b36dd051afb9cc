// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

// Package logger is the process-wide logger used by abboot.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
)

// A Logger is a fairly minimal logging tool.
type Logger interface {
	// Notice is for messages that the user should see
	Notice(msg string)
	// Debug is for messages that the user should be able to find if they're debugging something
	Debug(msg string)
}

const (
	// DefaultFlags are passed to the default console log.Logger
	DefaultFlags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile

	debugEnv = "ABBOOT_DEBUG"
)

type nullLogger struct{}

func (nullLogger) Notice(string) {}
func (nullLogger) Debug(string)  {}

// NullLogger is a logger that does nothing
var NullLogger = nullLogger{}

var (
	logger Logger = NullLogger
	lock   sync.Mutex
)

// Noticef notifies the user of something
func Noticef(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)

	lock.Lock()
	defer lock.Unlock()

	logger.Notice(msg)
}

// Debugf records something in the debug log
func Debugf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)

	lock.Lock()
	defer lock.Unlock()

	logger.Debug(msg)
}

// MockLogger replaces the existing logger with a buffer and returns
// the log buffer and a restore function. Debug messages are recorded.
func MockLogger() (buf *bytes.Buffer, restore func()) {
	buf = &bytes.Buffer{}
	oldLogger := logger
	SetLogger(New(buf, DefaultFlags, true))
	return buf, func() {
		SetLogger(oldLogger)
	}
}

// SetLogger sets the global logger to the given one
func SetLogger(l Logger) {
	lock.Lock()
	defer lock.Unlock()

	logger = l
}

// Log is the console implementation of Logger.
type Log struct {
	log   *log.Logger
	debug bool
}

func (l *Log) debugEnabled() bool {
	if l.debug {
		return true
	}
	v, _ := strconv.ParseBool(os.Getenv(debugEnv))
	return v
}

// Debug only prints if debugging was requested or ABBOOT_DEBUG is set
func (l *Log) Debug(msg string) {
	if l.debugEnabled() {
		l.log.Output(3, "DEBUG: "+msg)
	}
}

// Notice alerts the user about something
func (l *Log) Notice(msg string) {
	l.log.Output(3, msg)
}

// New creates a Logger writing to w using the given log flags.
func New(w io.Writer, flag int, debug bool) *Log {
	return &Log{
		log:   log.New(w, "", flag),
		debug: debug,
	}
}

// SimpleSetup creates the default (console) logger
func SimpleSetup(debug bool) {
	flags := log.Lshortfile
	if term := os.Getenv("TERM"); term != "" {
		// not running under the installer, timestamps are useful
		flags = DefaultFlags
	}
	SetLogger(New(os.Stderr, flags, debug))
}
