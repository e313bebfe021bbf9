// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommand(t *testing.T) {
	t.Run("plain command", func(t *testing.T) {
		cmd, err := ReadCommand(strings.NewReader("data.csv"), 1024)
		require.NoError(t, err)
		assert.Equal(t, "data.csv", cmd)
	})

	t.Run("surrounding whitespace trimmed", func(t *testing.T) {
		cmd, err := ReadCommand(strings.NewReader("  chart \n"), 1024)
		require.NoError(t, err)
		assert.Equal(t, "chart", cmd)
	})

	t.Run("over ceiling rejected", func(t *testing.T) {
		_, err := ReadCommand(strings.NewReader(strings.Repeat("x", 20)), 10)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("empty is an error", func(t *testing.T) {
		_, err := ReadCommand(strings.NewReader("   "), 1024)
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})
}

func TestBinaryFrame_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 5000)
	var buf bytes.Buffer
	require.NoError(t, WriteBinaryFrame(&buf, payload))

	// 4-byte big-endian prefix then exactly the payload.
	raw := buf.Bytes()
	require.Len(t, raw, 4+len(payload))
	assert.Equal(t, []byte{0x00, 0x00, 0x27, 0x10}, raw[:4])

	got, err := ReadBinaryFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// fragmentedReader yields at most chunk bytes per Read call, forcing the
// frame reader to reassemble across many partial reads.
type fragmentedReader struct {
	data  []byte
	chunk int
}

func (f *fragmentedReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := f.chunk
	if n > len(f.data) {
		n = len(f.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, f.data[:n])
	f.data = f.data[n:]
	return n, nil
}

func TestReadBinaryFrame_FragmentedReads(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 4097)
	var buf bytes.Buffer
	require.NoError(t, WriteBinaryFrame(&buf, payload))

	// Every split of the frame across 1..k physical reads must
	// reassemble to exactly the announced byte count.
	for _, chunk := range []int{1, 2, 3, 5, 64, 4096, 100000} {
		r := &fragmentedReader{data: append([]byte(nil), buf.Bytes()...), chunk: chunk}
		got, err := ReadBinaryFrame(r)
		require.NoError(t, err, "chunk=%d", chunk)
		assert.Equal(t, payload, got, "chunk=%d", chunk)
	}
}

func TestReadBinaryFrame_Truncation(t *testing.T) {
	t.Run("truncated payload never returned as complete", func(t *testing.T) {
		payload := bytes.Repeat([]byte{1}, 1000)
		var buf bytes.Buffer
		require.NoError(t, WriteBinaryFrame(&buf, payload))
		short := buf.Bytes()[:4+500]

		_, err := ReadBinaryFrame(bytes.NewReader(short))
		assert.ErrorIs(t, err, ErrTruncatedPayload)
	})

	t.Run("truncated prefix", func(t *testing.T) {
		_, err := ReadBinaryFrame(bytes.NewReader([]byte{0x00, 0x01}))
		assert.ErrorIs(t, err, ErrTruncatedPayload)
	})

	t.Run("absurd announced length", func(t *testing.T) {
		_, err := ReadBinaryFrame(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		kind CommandKind
		file string
	}{
		{"exit", KindExit, ""},
		{"QUIT", KindExit, ""},
		{"Exit", KindExit, ""},
		{"sales.csv", KindLoadCSV, "sales.csv"},
		{"REPORT.CSV", KindLoadCSV, "REPORT.CSV"},
		{"chart", KindChart, ""},
		{"Chart", KindOther, ""}, // chart trigger is exact
		{"df.describe()", KindOther, ""},
		{"import os", KindOther, ""},
	}
	for _, tt := range tests {
		cmd := Classify(tt.raw)
		assert.Equal(t, tt.kind, cmd.Kind, tt.raw)
		assert.Equal(t, tt.file, cmd.Filename, tt.raw)
		assert.Equal(t, tt.raw, cmd.Raw)
	}
}
