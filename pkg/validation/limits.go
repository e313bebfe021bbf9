// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"fmt"
)

// Sentinel errors for resource ceilings. Exceeding a ceiling is a
// rejection, never a truncate-and-continue.
var (
	ErrFileTooLarge = errors.New("file too large")
	ErrTooManyRows  = errors.New("row limit exceeded")
)

// Default resource ceilings. Callers may pass tighter limits; zero means
// "use the default".
const (
	DefaultMaxFileBytes int64 = 100 * 1024 * 1024
	DefaultMaxRows            = 1_000_000
)

// ValidateFileSize rejects uploads larger than maxBytes.
func ValidateFileSize(n, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if n > maxBytes {
		return fmt.Errorf("upload is %d bytes, limit is %d: %w", n, maxBytes, ErrFileTooLarge)
	}
	return nil
}

// ValidateRowCount rejects datasets with more than maxRows parsed rows.
func ValidateRowCount(n, maxRows int) error {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if n > maxRows {
		return fmt.Errorf("dataset has %d rows, limit is %d: %w", n, maxRows, ErrTooManyRows)
	}
	return nil
}
