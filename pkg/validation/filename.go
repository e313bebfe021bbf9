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
	"fmt"
	"strings"
)

// FilenameReason classifies why a filename was rejected.
type FilenameReason string

const (
	ReasonEmptyName           FilenameReason = "empty_name"
	ReasonPathTraversal       FilenameReason = "path_traversal"
	ReasonAbsolutePath        FilenameReason = "absolute_path"
	ReasonDisallowedExtension FilenameReason = "disallowed_extension"
	ReasonInvalidCharacter    FilenameReason = "invalid_character"
)

// FilenameError reports a rejected upload filename with its reason code.
type FilenameError struct {
	Name   string
	Reason FilenameReason
}

func (e *FilenameError) Error() string {
	switch e.Reason {
	case ReasonEmptyName:
		return "filename cannot be empty"
	case ReasonPathTraversal:
		return fmt.Sprintf("filename %q contains a path segment", e.Name)
	case ReasonAbsolutePath:
		return fmt.Sprintf("filename %q is an absolute path", e.Name)
	case ReasonDisallowedExtension:
		return fmt.Sprintf("filename %q has a disallowed extension (only .csv is accepted)", e.Name)
	case ReasonInvalidCharacter:
		return fmt.Sprintf("filename %q contains invalid characters", e.Name)
	default:
		return fmt.Sprintf("filename %q rejected", e.Name)
	}
}

// dangerousChars are shell and substitution metacharacters that must never
// appear in a name that reaches the filesystem boundary.
const dangerousChars = "<>|&;`$(){}[]"

// allowedExtensions is the closed set of upload extensions.
var allowedExtensions = []string{".csv"}

// SanitizeFilename validates an upload filename and returns it unmodified.
//
// Sanitization here is rejection, not character-stripping: silently
// stripping characters can produce a different, attacker-influenced name
// than the one the user saw approved. Checks, in order:
//
//   - empty name
//   - parent-directory segments or any path separator (forward or back slash)
//   - absolute paths (leading separator, or a drive-letter-colon pattern)
//   - extension outside the .csv allow-list (case-insensitive)
//   - shell metacharacters
func SanitizeFilename(name string) (string, error) {
	if name == "" {
		return "", &FilenameError{Name: name, Reason: ReasonEmptyName}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", &FilenameError{Name: name, Reason: ReasonPathTraversal}
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) ||
		(len(name) > 1 && name[1] == ':') {
		return "", &FilenameError{Name: name, Reason: ReasonAbsolutePath}
	}
	lower := strings.ToLower(name)
	extOK := false
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(lower, ext) {
			extOK = true
			break
		}
	}
	if !extOK {
		return "", &FilenameError{Name: name, Reason: ReasonDisallowedExtension}
	}
	if strings.ContainsAny(name, dangerousChars) {
		return "", &FilenameError{Name: name, Reason: ReasonInvalidCharacter}
	}
	return name, nil
}
