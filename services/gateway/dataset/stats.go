// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ColumnStats is the per-column statistical summary.
type ColumnStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ErrNoNumericColumns is returned by operations that need at least one
// numeric column.
var ErrNoNumericColumns = errors.New("no numeric columns found")

// Describe returns summary statistics for every numeric column, keyed by
// column name. Null cells are excluded from all statistics. Std is the
// sample standard deviation.
func (f *Frame) Describe() (map[string]ColumnStats, error) {
	numeric := f.NumericColumns()
	if len(numeric) == 0 {
		return nil, ErrNoNumericColumns
	}
	out := make(map[string]ColumnStats, len(numeric))
	for _, name := range numeric {
		out[name] = summarize(f.numeric[name])
	}
	return out, nil
}

func summarize(vals []float64) ColumnStats {
	var (
		count    int
		sum      float64
		min, max = math.Inf(1), math.Inf(-1)
	)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		count++
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if count == 0 {
		return ColumnStats{}
	}
	mean := sum / float64(count)
	var sq float64
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sq += (v - mean) * (v - mean)
	}
	std := 0.0
	if count > 1 {
		std = math.Sqrt(sq / float64(count-1))
	}
	return ColumnStats{Count: count, Mean: mean, Std: std, Min: min, Max: max}
}

// QuantileStats extends ColumnStats with the quartiles, matching the
// pandas describe percentiles.
type QuantileStats struct {
	ColumnStats
	P25    float64 `json:"25%"`
	Median float64 `json:"50%"`
	P75    float64 `json:"75%"`
}

// StatisticalSummary returns the full per-column summary including
// quartiles. Quartiles use linear interpolation between order statistics.
func (f *Frame) StatisticalSummary() (map[string]QuantileStats, error) {
	numeric := f.NumericColumns()
	if len(numeric) == 0 {
		return nil, ErrNoNumericColumns
	}
	out := make(map[string]QuantileStats, len(numeric))
	for _, name := range numeric {
		vals := f.numeric[name]
		out[name] = QuantileStats{
			ColumnStats: summarize(vals),
			P25:         Quantile(vals, 0.25),
			Median:      Quantile(vals, 0.50),
			P75:         Quantile(vals, 0.75),
		}
	}
	return out, nil
}

// Quantile returns the q-th quantile of the non-null values using linear
// interpolation between order statistics. Returns NaN for empty input.
func Quantile(vals []float64, q float64) float64 {
	var sorted []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// CorrMatrix is a Pearson correlation matrix over numeric columns.
// Values[i][j] is the correlation of Columns[i] with Columns[j].
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// Corr computes the pairwise Pearson correlation of all numeric columns,
// using only rows where both values are non-null. The work is quadratic
// in column count times row count, so it honors ctx cancellation between
// columns.
func (f *Frame) Corr(ctx context.Context) (*CorrMatrix, error) {
	cols := f.NumericColumns()
	if len(cols) == 0 {
		return nil, ErrNoNumericColumns
	}
	m := &CorrMatrix{Columns: cols, Values: make([][]float64, len(cols))}
	for i := range cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.Values[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				m.Values[i][j] = 1
				continue
			}
			m.Values[i][j] = pearson(f.numeric[cols[i]], f.numeric[cols[j]])
		}
	}
	return m, nil
}

func pearson(x, y []float64) float64 {
	var n int
	var sumX, sumY float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		n++
		sumX += x[i]
		sumY += y[i]
	}
	if n < 2 {
		return math.NaN()
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)
	var cov, varX, varY float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// Head returns the first n rows as records (column → typed value).
func (f *Frame) Head(n int) []map[string]any {
	if n < 0 {
		n = 0
	}
	if n > f.rowCount {
		n = f.rowCount
	}
	return f.records(0, n)
}

// Tail returns the last n rows as records.
func (f *Frame) Tail(n int) []map[string]any {
	if n < 0 {
		n = 0
	}
	if n > f.rowCount {
		n = f.rowCount
	}
	return f.records(f.rowCount-n, f.rowCount)
}

func (f *Frame) records(from, to int) []map[string]any {
	out := make([]map[string]any, 0, to-from)
	for i := from; i < to; i++ {
		rec := make(map[string]any, len(f.columns))
		for _, name := range f.columns {
			rec[name] = typedCell(f.cells[name][i], f.types[name])
		}
		out = append(out, rec)
	}
	return out
}

func typedCell(raw string, t ColumnType) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch t {
	case TypeInt:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	case TypeFloat:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	case TypeBool:
		if v, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return v
		}
	}
	return raw
}

// Info describes the frame shape, per-column dtypes and null counts, and
// an estimate of resident memory.
type Info struct {
	Rows        int                   `json:"rows"`
	Columns     int                   `json:"columns"`
	Dtypes      map[string]ColumnType `json:"dtypes"`
	NullCounts  map[string]int        `json:"null_counts"`
	MemoryBytes int64                 `json:"memory_bytes"`
}

// InfoSummary returns shape, dtype and null-count details for the frame.
func (f *Frame) InfoSummary() Info {
	nulls := make(map[string]int, len(f.columns))
	var mem int64
	for _, name := range f.columns {
		n := 0
		for _, c := range f.cells[name] {
			mem += int64(len(c))
			if strings.TrimSpace(c) == "" {
				n++
			}
		}
		nulls[name] = n
		if _, ok := f.numeric[name]; ok {
			mem += int64(8 * f.rowCount)
		}
	}
	return Info{
		Rows:        f.rowCount,
		Columns:     len(f.columns),
		Dtypes:      f.Types(),
		NullCounts:  nulls,
		MemoryBytes: mem,
	}
}
