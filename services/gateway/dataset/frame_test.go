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
	"math"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "name,age,score,active\nalice,30,91.5,true\nbob,25,78.0,false\ncara,41,88.25,true\n"

func TestParse_BasicFrame(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, f.RowCount())
	assert.Equal(t, []string{"name", "age", "score", "active"}, f.Columns())
	assert.Equal(t, int64(len(sampleCSV)), f.SizeBytes())

	types := f.Types()
	assert.Equal(t, TypeString, types["name"])
	assert.Equal(t, TypeInt, types["age"])
	assert.Equal(t, TypeFloat, types["score"])
	assert.Equal(t, TypeBool, types["active"])
}

func TestParse_Rejections(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Parse(strings.NewReader(""), 0)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("duplicate column names", func(t *testing.T) {
		_, err := Parse(strings.NewReader("a,a\n1,2\n"), 0)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("ragged row", func(t *testing.T) {
		_, err := Parse(strings.NewReader("a,b\n1\n"), 0)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	})

	t.Run("row ceiling is a rejection not a truncation", func(t *testing.T) {
		_, err := Parse(strings.NewReader("a\n1\n2\n3\n"), 2)
		assert.ErrorIs(t, err, validation.ErrTooManyRows)
	})
}

func TestFrame_Describe(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	stats, err := f.Describe()
	require.NoError(t, err)

	// Exactly the two numeric columns.
	require.Len(t, stats, 2)
	age := stats["age"]
	assert.Equal(t, 3, age.Count)
	assert.InDelta(t, 32.0, age.Mean, 1e-9)
	assert.InDelta(t, 25.0, age.Min, 1e-9)
	assert.InDelta(t, 41.0, age.Max, 1e-9)
	assert.InDelta(t, 8.185352771872, age.Std, 1e-9)
}

func TestFrame_DescribeNoNumeric(t *testing.T) {
	f, err := Parse(strings.NewReader("a,b\nx,y\n"), 0)
	require.NoError(t, err)
	_, err = f.Describe()
	assert.ErrorIs(t, err, ErrNoNumericColumns)
}

func TestFrame_Corr(t *testing.T) {
	// y = 2x exactly; correlation must be 1.
	csv := "x,y,z\n1,2,5\n2,4,3\n3,6,1\n"
	f, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)

	m, err := f.Corr(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y", "z"}, m.Columns)
	assert.InDelta(t, 1.0, m.Values[0][0], 1e-12)
	assert.InDelta(t, 1.0, m.Values[0][1], 1e-12)
	assert.InDelta(t, -1.0, m.Values[0][2], 1e-12)
}

func TestFrame_HeadTail(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	head := f.Head(2)
	require.Len(t, head, 2)
	assert.Equal(t, "alice", head[0]["name"])
	assert.Equal(t, int64(30), head[0]["age"])
	assert.Equal(t, 91.5, head[0]["score"])
	assert.Equal(t, true, head[0]["active"])

	tail := f.Tail(1)
	require.Len(t, tail, 1)
	assert.Equal(t, "cara", tail[0]["name"])

	// Asking for more rows than exist clamps instead of panicking.
	assert.Len(t, f.Head(100), 3)
	assert.Len(t, f.Tail(100), 3)
}

func TestFrame_Info(t *testing.T) {
	csv := "a,b\n1,\n2,x\n"
	f, err := Parse(strings.NewReader(csv), 0)
	require.NoError(t, err)

	info := f.InfoSummary()
	assert.Equal(t, 2, info.Rows)
	assert.Equal(t, 2, info.Columns)
	assert.Equal(t, 1, info.NullCounts["b"])
	assert.Equal(t, 0, info.NullCounts["a"])
	assert.Positive(t, info.MemoryBytes)
}

func TestFrame_NumericColumn(t *testing.T) {
	f, err := Parse(strings.NewReader("a,b\n1,x\n,y\n"), 0)
	require.NoError(t, err)

	vals, err := f.NumericColumn("a")
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, 1.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]))

	_, err = f.NumericColumn("b")
	assert.Error(t, err)
	_, err = f.NumericColumn("missing")
	assert.Error(t, err)
}

func TestFrame_StatisticalSummary(t *testing.T) {
	f, err := Parse(strings.NewReader("v\n1\n2\n3\n4\n5\n"), 0)
	require.NoError(t, err)

	stats, err := f.StatisticalSummary()
	require.NoError(t, err)
	require.Contains(t, stats, "v")

	v := stats["v"]
	assert.Equal(t, 5, v.Count)
	assert.InDelta(t, 3.0, v.Mean, 1e-9)
	assert.InDelta(t, 2.0, v.P25, 1e-9)
	assert.InDelta(t, 3.0, v.Median, 1e-9)
	assert.InDelta(t, 4.0, v.P75, 1e-9)
}

func TestFrame_StatisticalSummaryNoNumeric(t *testing.T) {
	f, err := Parse(strings.NewReader("a\nx\ny\n"), 0)
	require.NoError(t, err)
	_, err = f.StatisticalSummary()
	assert.ErrorIs(t, err, ErrNoNumericColumns)
}

func TestFrame_CorrHonorsCancellation(t *testing.T) {
	f, err := Parse(strings.NewReader("x,y\n1,2\n2,4\n"), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = f.Corr(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
