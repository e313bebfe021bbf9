// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for client-supplied operation requests,
// upload filenames, and resource ceilings. All functions are pure: they hold
// no state, touch no session data, and are safe to call from any goroutine.
// Validation here is rejection, never silent repair — a request that fails
// any check is refused before it can reach a session or the filesystem.
package validation

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors for request-level validation failures. All are
// client-caused and must be handled at the boundary; none may reach an
// operation implementation.
var (
	// ErrUnknownOperation means the requested operation is not in the whitelist.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnexpectedParameter means a parameter key is outside the
	// operation's allowed set. The whitelist is closed: extra keys are
	// rejected rather than ignored, so client bugs surface immediately.
	ErrUnexpectedParameter = errors.New("unexpected parameter")

	// ErrRequestTooLarge means the serialized request exceeds MaxRequestBytes.
	ErrRequestTooLarge = errors.New("request too large")
)

// MaxRequestBytes is the ceiling for a single serialized request on the
// textual path (matches the 10 KiB legacy command limit).
const MaxRequestBytes = 10 * 1024

// OperationTable maps a whitelisted operation name to its closed set of
// allowed parameter keys. Every operation the dispatcher can invoke has
// exactly one entry; a name absent from the table is rejected before any
// session lookup.
type OperationTable map[string]map[string]struct{}

// NewOperationTable builds an OperationTable from name → parameter list.
func NewOperationTable(ops map[string][]string) OperationTable {
	table := make(OperationTable, len(ops))
	for name, params := range ops {
		allowed := make(map[string]struct{}, len(params))
		for _, p := range params {
			allowed[p] = struct{}{}
		}
		table[name] = allowed
	}
	return table
}

// Names returns the whitelisted operation names in sorted order.
func (t OperationTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Allows reports whether key is in the allowed parameter set of op.
func (t OperationTable) Allows(op, key string) bool {
	allowed, ok := t[op]
	if !ok {
		return false
	}
	_, ok = allowed[key]
	return ok
}

// ValidateRequest checks an (operation, params) pair against the whitelist.
//
// It fails with ErrUnknownOperation if the operation has no table entry,
// and with ErrUnexpectedParameter if any params key is outside the
// operation's allowed set. It never mutates its inputs and holds no
// session context, so it is unit-testable in isolation from the
// dispatcher and the session store.
func ValidateRequest(table OperationTable, operation string, params map[string]any) error {
	allowed, ok := table[operation]
	if !ok {
		return fmt.Errorf("operation %q: %w", operation, ErrUnknownOperation)
	}
	for key := range params {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("parameter %q not allowed for operation %q: %w",
				key, operation, ErrUnexpectedParameter)
		}
	}
	return nil
}

// ValidateRequestSize enforces the serialized-request byte ceiling.
func ValidateRequestSize(n int) error {
	if n > MaxRequestBytes {
		return fmt.Errorf("request is %d bytes, limit is %d: %w",
			n, MaxRequestBytes, ErrRequestTooLarge)
	}
	return nil
}
