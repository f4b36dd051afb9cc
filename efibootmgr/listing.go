// This file is part of abboot
// Copyright 2025 Savoir-faire Linux, Inc.
// SPDX-License-Identifier: GPL-3.0-only

package efibootmgr

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/seapath/abboot/logger"
)

// Listing is the parsed output of efibootmgr.
type Listing struct {
	Current string
	Next    string
	Order   []string
	Entries []BootEntry
	// Skipped holds the lines that looked like boot entries but could not be parsed.
	Skipped []string
}

// ParseListing parses the output of efibootmgr, which looks like:
//
//	BootCurrent: 0001
//	Timeout: 1 seconds
//	BootOrder: 0001,0002
//	Boot0001* Windows Boot Manager	HD(1,GPT,...)/File(\EFI\Microsoft\Boot\bootmgfw.efi)
//	Boot0002  Linux
//
// A trailing "*" on the id means the entry is active. Anything after the
// first tab is the device path and is ignored. Unknown lines are ignored;
// entry lines without a valid id are recorded in Skipped.
func ParseListing(out []byte) Listing {
	var l Listing

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "BootCurrent:"):
			l.Current = headerValue(line)
		case strings.HasPrefix(line, "BootNext:"):
			l.Next = headerValue(line)
		case strings.HasPrefix(line, "BootOrder:"):
			l.Order = splitOrder(headerValue(line))
		case strings.HasPrefix(line, "Boot"):
			entry, ok := parseEntryLine(line)
			if !ok {
				logger.Debugf("%s: skipping unparsable line %q", ParseAnomaly, line)
				l.Skipped = append(l.Skipped, line)
				continue
			}
			l.Entries = append(l.Entries, entry)
		}
	}

	return l
}

func headerValue(line string) string {
	fields := strings.Fields(line[strings.IndexByte(line, ':')+1:])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func splitOrder(s string) []string {
	var order []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			order = append(order, strings.ToUpper(id))
		}
	}
	return order
}

func parseEntryLine(line string) (BootEntry, bool) {
	var entry BootEntry

	token, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		token, rest = line[:i], line[i:]
	}
	id := strings.TrimPrefix(token, "Boot")
	if strings.HasSuffix(id, "*") {
		id = strings.TrimSuffix(id, "*")
		entry.Active = true
	}
	if !isBootNumber(id) {
		return BootEntry{}, false
	}
	entry.ID = strings.ToUpper(id)

	label, _, _ := strings.Cut(rest, "\t")
	entry.Label = strings.TrimSpace(label)
	return entry, true
}

func isBootNumber(id string) bool {
	if len(id) != 4 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
