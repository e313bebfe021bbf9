// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

// Raster geometry. 800x600 with a fixed margin for the axes.
const (
	rasterW = 800
	rasterH = 600
	margin  = 60
)

var (
	bgColor     = color.RGBA{255, 255, 255, 255}
	axisColor   = color.RGBA{40, 40, 40, 255}
	seriesColor = color.RGBA{70, 130, 180, 255} // steelblue, as the original styling
	gridColor   = color.RGBA{220, 220, 220, 255}
)

// rasterize renders a chart spec to PNG bytes. Axis labels and titles
// travel in the spec; the raster carries the data geometry only.
func rasterize(spec *Spec) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, rasterW, rasterH))
	fill(img, bgColor)

	switch spec.Type {
	case "bar":
		drawAxes(img)
		drawBars(img, spec.Values)
	case "line":
		drawAxes(img)
		drawPoints(img, spec.X, spec.Y, true)
	case "scatter":
		drawAxes(img)
		drawPoints(img, spec.X, spec.Y, false)
	case "histogram":
		drawAxes(img)
		counts := make([]float64, len(spec.Counts))
		for i, c := range spec.Counts {
			counts[i] = float64(c)
		}
		drawBars(img, counts)
	case "pie":
		drawPie(img, spec.Values)
	case "heatmap":
		drawHeatmap(img, spec.Matrix)
	case "box":
		drawAxes(img)
		drawBoxes(img, spec.Boxes)
	default:
		return nil, fmt.Errorf("cannot rasterize plot type: %s", spec.Type)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawAxes(img *image.RGBA) {
	for x := margin; x < rasterW-margin; x++ {
		img.SetRGBA(x, rasterH-margin, axisColor)
	}
	for y := margin; y < rasterH-margin; y++ {
		img.SetRGBA(margin, y, axisColor)
	}
}

func drawBars(img *image.RGBA, values []float64) {
	if len(values) == 0 {
		return
	}
	max := values[0]
	min := 0.0
	for _, v := range values {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	if max == min {
		max = min + 1
	}
	plotW := rasterW - 2*margin
	plotH := rasterH - 2*margin
	slot := plotW / len(values)
	barW := slot * 7 / 10
	if barW < 1 {
		barW = 1
	}
	for i, v := range values {
		h := int(float64(plotH) * (v - min) / (max - min))
		x0 := margin + i*slot + (slot-barW)/2
		for x := x0; x < x0+barW; x++ {
			for y := rasterH - margin - h; y < rasterH-margin; y++ {
				img.SetRGBA(x, y, seriesColor)
			}
		}
	}
}

func drawPoints(img *image.RGBA, xs, ys []float64, connect bool) {
	if len(xs) == 0 {
		return
	}
	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)
	if maxX == minX {
		maxX = minX + 1
	}
	if maxY == minY {
		maxY = minY + 1
	}
	toPixel := func(x, y float64) (int, int) {
		px := margin + int(float64(rasterW-2*margin)*(x-minX)/(maxX-minX))
		py := rasterH - margin - int(float64(rasterH-2*margin)*(y-minY)/(maxY-minY))
		return px, py
	}
	var prevX, prevY int
	for i := range xs {
		px, py := toPixel(xs[i], ys[i])
		dot(img, px, py)
		if connect && i > 0 {
			line(img, prevX, prevY, px, py)
		}
		prevX, prevY = px, py
	}
}

// drawBoxes renders one whisker-and-box glyph per group on a shared
// vertical scale.
func drawBoxes(img *image.RGBA, boxes []BoxStats) {
	if len(boxes) == 0 {
		return
	}
	min, max := boxes[0].Min, boxes[0].Max
	for _, b := range boxes {
		if b.Min < min {
			min = b.Min
		}
		if b.Max > max {
			max = b.Max
		}
	}
	if max == min {
		max = min + 1
	}
	plotH := rasterH - 2*margin
	toY := func(v float64) int {
		return rasterH - margin - int(float64(plotH)*(v-min)/(max-min))
	}
	slot := (rasterW - 2*margin) / len(boxes)
	boxW := slot * 5 / 10
	if boxW < 3 {
		boxW = 3
	}
	for i, b := range boxes {
		cx := margin + i*slot + slot/2
		x0, x1 := cx-boxW/2, cx+boxW/2
		// Whisker from min to max.
		line(img, cx, toY(b.Min), cx, toY(b.Max))
		line(img, x0, toY(b.Min), x1, toY(b.Min))
		line(img, x0, toY(b.Max), x1, toY(b.Max))
		// Box spanning the interquartile range.
		yQ1, yQ3 := toY(b.Q1), toY(b.Q3)
		line(img, x0, yQ1, x1, yQ1)
		line(img, x0, yQ3, x1, yQ3)
		line(img, x0, yQ3, x0, yQ1)
		line(img, x1, yQ3, x1, yQ1)
		line(img, x0, toY(b.Median), x1, toY(b.Median))
	}
}

func drawPie(img *image.RGBA, values []float64) {
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return
	}
	cx, cy := rasterW/2, rasterH/2
	radius := float64(rasterH/2 - margin)
	// Per-pixel angle test against the cumulative slice boundaries.
	cumulative := make([]float64, len(values)+1)
	for i, v := range values {
		cumulative[i+1] = cumulative[i] + v/total
	}
	for y := cy - int(radius); y <= cy+int(radius); y++ {
		for x := cx - int(radius); x <= cx+int(radius); x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			frac := (math.Atan2(dy, dx) + math.Pi) / (2 * math.Pi)
			for i := 0; i < len(values); i++ {
				if frac >= cumulative[i] && frac <= cumulative[i+1] {
					img.SetRGBA(x, y, sliceColor(i))
					break
				}
			}
		}
	}
}

func drawHeatmap(img *image.RGBA, matrix [][]float64) {
	n := len(matrix)
	if n == 0 {
		return
	}
	cellW := (rasterW - 2*margin) / n
	cellH := (rasterH - 2*margin) / n
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			c := corrColor(matrix[i][j])
			x0 := margin + j*cellW
			y0 := margin + i*cellH
			for y := y0; y < y0+cellH; y++ {
				for x := x0; x < x0+cellW; x++ {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

// corrColor maps [-1, 1] onto a blue-white-red gradient. NaN cells
// render as grid gray.
func corrColor(v float64) color.RGBA {
	if math.IsNaN(v) {
		return gridColor
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	if v >= 0 {
		fade := uint8(255 * (1 - v))
		return color.RGBA{255, fade, fade, 255}
	}
	fade := uint8(255 * (1 + v))
	return color.RGBA{fade, fade, 255, 255}
}

func sliceColor(i int) color.RGBA {
	palette := []color.RGBA{
		{70, 130, 180, 255},
		{255, 159, 64, 255},
		{75, 192, 128, 255},
		{220, 95, 95, 255},
		{153, 102, 255, 255},
		{201, 203, 100, 255},
	}
	return palette[i%len(palette)]
}

func bounds(vals []float64) (float64, float64) {
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func dot(img *image.RGBA, x, y int) {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if dx*dx+dy*dy <= 4 {
				setClipped(img, x+dx, y+dy)
			}
		}
	}
}

func line(img *image.RGBA, x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setClipped(img, x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setClipped(img *image.RGBA, x, y int) {
	if x >= 0 && x < rasterW && y >= 0 && y < rasterH {
		img.SetRGBA(x, y, seriesColor)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
