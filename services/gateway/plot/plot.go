// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plot builds renderable chart payloads from a dataset frame.
// The primary output is a structured chart spec the client renders
// itself; callers that need raw image bytes (the legacy binary framing)
// request the png format, which rasterizes the same spec server-side.
package plot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianViz/services/gateway/dataset"
)

// Params are the validated plot parameters. Every field maps to a key in
// the plot operation's allowed-parameter set.
type Params struct {
	Type   string
	X      string
	Y      string
	Title  string
	XLabel string
	YLabel string
	Format string // "spec" (default) or "png"
}

const (
	FormatSpec = "spec"
	FormatPNG  = "png"
)

// Spec is the structured chart description. Only the fields relevant to
// the chart type are populated.
type Spec struct {
	Type   string `json:"type"`
	Title  string `json:"title,omitempty"`
	XLabel string `json:"xlabel,omitempty"`
	YLabel string `json:"ylabel,omitempty"`

	// Categorical charts (bar, pie).
	Labels []string  `json:"labels,omitempty"`
	Values []float64 `json:"values,omitempty"`

	// Point charts (line, scatter).
	X []float64 `json:"x,omitempty"`
	Y []float64 `json:"y,omitempty"`

	// Histogram.
	BinEdges []float64 `json:"bin_edges,omitempty"`
	Counts   []int     `json:"counts,omitempty"`

	// Heatmap.
	Columns []string    `json:"columns,omitempty"`
	Matrix  [][]float64 `json:"matrix,omitempty"`

	// Box plot: one five-number summary per group.
	Boxes []BoxStats `json:"boxes,omitempty"`
}

// BoxStats is the five-number summary for one box plot group.
type BoxStats struct {
	Label  string  `json:"label"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Chart is the plot result: always a spec, plus PNG bytes when the png
// format was requested.
type Chart struct {
	Format      string `json:"format"`
	Spec        *Spec  `json:"spec"`
	PNG         []byte `json:"png,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Render builds a chart from the frame. Domain failures (unknown type,
// missing parameters, absent or non-numeric columns) are plain errors
// the dispatcher surfaces verbatim as operation errors. Cancelling ctx
// stops the data passes and skips rasterization.
func Render(ctx context.Context, f *dataset.Frame, p Params) (*Chart, error) {
	spec, err := buildSpec(ctx, f, p)
	if err != nil {
		return nil, err
	}
	chart := &Chart{Format: FormatSpec, Spec: spec}
	if p.Format == FormatPNG {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		png, err := rasterize(spec)
		if err != nil {
			return nil, err
		}
		chart.Format = FormatPNG
		chart.PNG = png
		chart.ContentType = "image/png"
	}
	return chart, nil
}

func buildSpec(ctx context.Context, f *dataset.Frame, p Params) (*Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := &Spec{
		Type:   p.Type,
		Title:  p.Title,
		XLabel: p.XLabel,
		YLabel: p.YLabel,
	}
	if spec.XLabel == "" {
		spec.XLabel = p.X
	}
	if spec.YLabel == "" {
		spec.YLabel = p.Y
	}

	switch p.Type {
	case "bar":
		if p.X == "" || p.Y == "" {
			return nil, fmt.Errorf("bar plot requires x and y parameters")
		}
		labels, values, err := groupMean(f, p.X, p.Y)
		if err != nil {
			return nil, err
		}
		spec.Labels, spec.Values = labels, values
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("Average %s by %s", p.Y, p.X)
		}

	case "line", "scatter":
		if p.X == "" || p.Y == "" {
			return nil, fmt.Errorf("%s plot requires x and y parameters", p.Type)
		}
		xs, err := f.NumericColumn(p.X)
		if err != nil {
			return nil, err
		}
		ys, err := f.NumericColumn(p.Y)
		if err != nil {
			return nil, err
		}
		for i := range xs {
			if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
				continue
			}
			spec.X = append(spec.X, xs[i])
			spec.Y = append(spec.Y, ys[i])
		}
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("%s vs %s", p.Y, p.X)
		}

	case "histogram":
		if p.X == "" {
			return nil, fmt.Errorf("histogram requires x parameter")
		}
		vals, err := f.NumericColumn(p.X)
		if err != nil {
			return nil, err
		}
		edges, counts := histogram(vals, 10)
		if len(counts) == 0 {
			return nil, fmt.Errorf("column %q has no numeric values to bin", p.X)
		}
		spec.BinEdges, spec.Counts = edges, counts
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("Distribution of %s", p.X)
		}

	case "pie":
		if p.X == "" {
			return nil, fmt.Errorf("pie chart requires x parameter")
		}
		labels, values, err := valueCounts(f, p.X)
		if err != nil {
			return nil, err
		}
		spec.Labels, spec.Values = labels, values
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("Distribution of %s", p.X)
		}

	case "heatmap":
		m, err := f.Corr(ctx)
		if err != nil {
			return nil, err
		}
		spec.Columns, spec.Matrix = m.Columns, m.Values
		if spec.Title == "" {
			spec.Title = "Correlation Heatmap"
		}

	case "box":
		if p.X == "" || p.Y == "" {
			return nil, fmt.Errorf("box plot requires x and y parameters")
		}
		boxes, err := groupBox(f, p.X, p.Y)
		if err != nil {
			return nil, err
		}
		spec.Boxes = boxes
		if spec.Title == "" {
			spec.Title = fmt.Sprintf("%s by %s", p.Y, p.X)
		}

	default:
		return nil, fmt.Errorf("unknown plot type: %s", p.Type)
	}
	return spec, nil
}

// groupMean groups rows by the x column and averages the numeric y
// column per group, preserving first-seen label order. Repeated x values
// collapse into one bar.
func groupMean(f *dataset.Frame, x, y string) ([]string, []float64, error) {
	xCells, err := f.Column(x)
	if err != nil {
		return nil, nil, err
	}
	yVals, err := f.NumericColumn(y)
	if err != nil {
		return nil, nil, err
	}
	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, label := range xCells {
		if math.IsNaN(yVals[i]) {
			continue
		}
		label = strings.TrimSpace(label)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		sums[label] += yVals[i]
		counts[label]++
	}
	values := make([]float64, len(order))
	for i, label := range order {
		values[i] = sums[label] / float64(counts[label])
	}
	return order, values, nil
}

// groupBox groups rows by the x column and computes the five-number
// summary of the numeric y column per group, preserving first-seen label
// order. Groups whose y values are all null are skipped.
func groupBox(f *dataset.Frame, x, y string) ([]BoxStats, error) {
	xCells, err := f.Column(x)
	if err != nil {
		return nil, err
	}
	yVals, err := f.NumericColumn(y)
	if err != nil {
		return nil, err
	}
	var order []string
	groups := make(map[string][]float64)
	for i, label := range xCells {
		if math.IsNaN(yVals[i]) {
			continue
		}
		label = strings.TrimSpace(label)
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], yVals[i])
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("column %q has no numeric values to box", y)
	}
	boxes := make([]BoxStats, 0, len(order))
	for _, label := range order {
		vals := groups[label]
		boxes = append(boxes, BoxStats{
			Label:  label,
			Min:    dataset.Quantile(vals, 0),
			Q1:     dataset.Quantile(vals, 0.25),
			Median: dataset.Quantile(vals, 0.50),
			Q3:     dataset.Quantile(vals, 0.75),
			Max:    dataset.Quantile(vals, 1),
		})
	}
	return boxes, nil
}

// valueCounts counts occurrences per distinct value of a column, sorted
// by descending count then label for deterministic output.
func valueCounts(f *dataset.Frame, col string) ([]string, []float64, error) {
	cells, err := f.Column(col)
	if err != nil {
		return nil, nil, err
	}
	counts := make(map[string]int)
	for _, c := range cells {
		counts[strings.TrimSpace(c)]++
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	values := make([]float64, len(labels))
	for i, label := range labels {
		values[i] = float64(counts[label])
	}
	return labels, values, nil
}

// histogram bins the non-null values into equal-width bins. Returns
// len(edges) == bins+1 and len(counts) == bins; empty input returns
// empty slices.
func histogram(vals []float64, bins int) ([]float64, []int) {
	var clean []float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	min, max := clean[0], clean[0]
	for _, v := range clean {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		// Degenerate single-value column: one bin of unit width.
		return []float64{min, min + 1}, []int{len(clean)}
	}
	width := (max - min) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = min + width*float64(i)
	}
	counts := make([]int, bins)
	for _, v := range clean {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return edges, counts
}
