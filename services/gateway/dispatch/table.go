// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
)

// operationsYAML holds the raw bytes of operations.yaml, baked into the
// binary with the embed directive so the whitelist is immutable at
// runtime and travels with the executable.
//
//go:embed operations.yaml
var operationsYAML []byte

// OperationSpec is one whitelist entry: an operation name and its closed
// set of allowed parameter keys.
type OperationSpec struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
}

type operationsFile struct {
	Operations []OperationSpec `yaml:"operations"`
}

// LoadOperationTable parses the embedded whitelist into a validation
// table. It fails on a malformed file, an empty operation name, or a
// duplicated entry, so a bad whitelist is caught at startup rather than
// at dispatch time.
func LoadOperationTable() (validation.OperationTable, error) {
	var file operationsFile
	if err := yaml.Unmarshal(operationsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded operations file: %w", err)
	}
	if len(file.Operations) == 0 {
		return nil, fmt.Errorf("embedded operations file lists no operations")
	}
	ops := make(map[string][]string, len(file.Operations))
	for _, spec := range file.Operations {
		if spec.Name == "" {
			return nil, fmt.Errorf("embedded operations file has an entry with an empty name")
		}
		if _, dup := ops[spec.Name]; dup {
			return nil, fmt.Errorf("operation %q is listed twice in the embedded operations file", spec.Name)
		}
		ops[spec.Name] = spec.Params
	}
	return validation.NewOperationTable(ops), nil
}
