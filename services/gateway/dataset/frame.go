// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset holds the in-memory tabular dataset owned by a session
// and the analysis operations that run against it. A Frame is immutable
// once parsed; the session store replaces it wholesale on a new load.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
)

// ColumnType tags the inferred type of a column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
	TypeString ColumnType = "string"
)

// ParseError reports malformed CSV content. The wrapped error carries the
// position details from the csv reader.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed CSV: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Frame is an immutable parsed dataset: an ordered set of named columns
// with inferred types and the raw cell values. Numeric columns are
// additionally materialized as float64 slices (NaN marks a null cell) so
// the statistics operations do not re-parse on every request.
type Frame struct {
	columns   []string
	types     map[string]ColumnType
	cells     map[string][]string
	numeric   map[string][]float64
	rowCount  int
	sizeBytes int64
}

// Summary is the load result reported back to the uploader.
type Summary struct {
	Rows      int                   `json:"rows"`
	Columns   []string              `json:"columns"`
	Types     map[string]ColumnType `json:"dtypes"`
	SizeBytes int64                 `json:"size_bytes"`
}

// Parse reads CSV content into a Frame. The first record is the header
// and must contain unique, non-empty column names. Row count above
// maxRows is a rejection, not a truncation.
func Parse(r io.Reader, maxRows int) (*Frame, error) {
	counted := &countingReader{r: r}
	cr := csv.NewReader(counted)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: fmt.Errorf("empty input")}
	}
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ParseError{Err: fmt.Errorf("empty column name at index %d", i)}
		}
		if _, dup := seen[name]; dup {
			return nil, &ParseError{Err: fmt.Errorf("duplicate column name %q", name)}
		}
		seen[name] = struct{}{}
		header[i] = name
	}

	cells := make(map[string][]string, len(header))
	for _, name := range header {
		cells[name] = nil
	}
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		rows++
		if err := validation.ValidateRowCount(rows, maxRows); err != nil {
			return nil, err
		}
		for i, name := range header {
			cells[name] = append(cells[name], record[i])
		}
	}

	f := &Frame{
		columns:   header,
		types:     make(map[string]ColumnType, len(header)),
		cells:     cells,
		numeric:   make(map[string][]float64),
		rowCount:  rows,
		sizeBytes: counted.n,
	}
	for _, name := range header {
		f.types[name] = inferType(cells[name])
	}
	for _, name := range header {
		if t := f.types[name]; t == TypeInt || t == TypeFloat {
			f.numeric[name] = parseNumeric(cells[name])
		}
	}
	return f, nil
}

// RowCount returns the number of data rows (header excluded).
func (f *Frame) RowCount() int { return f.rowCount }

// Columns returns the column names in file order. The returned slice is a copy.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Type returns the inferred type of the named column.
func (f *Frame) Type(name string) (ColumnType, bool) {
	t, ok := f.types[name]
	return t, ok
}

// Types returns a copy of the column → type mapping.
func (f *Frame) Types() map[string]ColumnType {
	out := make(map[string]ColumnType, len(f.types))
	for k, v := range f.types {
		out[k] = v
	}
	return out
}

// SizeBytes returns the byte size of the source CSV.
func (f *Frame) SizeBytes() int64 { return f.sizeBytes }

// Summary returns the load summary for this frame.
func (f *Frame) Summary() Summary {
	return Summary{
		Rows:      f.rowCount,
		Columns:   f.Columns(),
		Types:     f.Types(),
		SizeBytes: f.sizeBytes,
	}
}

// Column returns the raw cells of the named column.
func (f *Frame) Column(name string) ([]string, error) {
	col, ok := f.cells[name]
	if !ok {
		return nil, fmt.Errorf("column %q does not exist", name)
	}
	return col, nil
}

// NumericColumn returns the float values of a numeric column, with NaN
// marking null cells. Non-numeric columns are an error.
func (f *Frame) NumericColumn(name string) ([]float64, error) {
	if _, ok := f.cells[name]; !ok {
		return nil, fmt.Errorf("column %q does not exist", name)
	}
	vals, ok := f.numeric[name]
	if !ok {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	return vals, nil
}

// NumericColumns returns the names of numeric columns in file order.
func (f *Frame) NumericColumns() []string {
	var out []string
	for _, name := range f.columns {
		if _, ok := f.numeric[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// inferType scans the non-empty cells of a column. A column is int only
// if every value parses as an integer, float if every value parses as a
// number, bool if every value is a true/false literal. Anything else,
// or an all-empty column, is string.
func inferType(cells []string) ColumnType {
	isInt, isFloat, isBool := true, true, true
	nonEmpty := 0
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			isFloat = false
		}
		switch strings.ToLower(c) {
		case "true", "false":
		default:
			isBool = false
		}
	}
	if nonEmpty == 0 {
		return TypeString
	}
	switch {
	case isInt:
		return TypeInt
	case isFloat:
		return TypeFloat
	case isBool:
		return TypeBool
	default:
		return TypeString
	}
}

func parseNumeric(cells []string) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
