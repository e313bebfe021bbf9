// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wire encodes and decodes requests and responses for the two
// transports: the legacy raw TCP framing (newline-free text commands,
// length-prefixed binary blocks) and the structured JSON envelope used
// by the HTTP/WebSocket surface.
//
// Known protocol weakness, preserved deliberately: on the legacy
// transport a chart response is a 4-byte big-endian length followed by
// image bytes, while an error response is plain UTF-8 text. There is no
// discriminator byte, so a client cannot structurally tell the first 4
// bytes of "Error: ..." from a length prefix. The original protocol has
// this ambiguity and callers depend on it; adding a kind tag would break
// existing clients.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Sentinel errors for legacy framing failures. All are connection-fatal
// on the legacy transport.
var (
	ErrFrameTooLarge    = errors.New("frame exceeds size ceiling")
	ErrEmptyCommand     = errors.New("empty command")
	ErrTruncatedPayload = errors.New("truncated binary payload")
)

// MaxBinaryFrame bounds an announced binary payload; anything larger is
// treated as a malformed frame rather than an allocation request.
const MaxBinaryFrame = 64 * 1024 * 1024

// ReadCommand reads one legacy text command: a single UTF-8 block with
// no terminator, bounded by max bytes. One client write is one command,
// matching the connection-per-command protocol.
func ReadCommand(r io.Reader, max int) (string, error) {
	buf := make([]byte, max+1)
	n, err := r.Read(buf)
	if n == 0 && err != nil {
		return "", err
	}
	if n > max {
		return "", fmt.Errorf("command is over %d bytes: %w", max, ErrFrameTooLarge)
	}
	cmd := strings.TrimSpace(string(buf[:n]))
	if cmd == "" {
		return "", ErrEmptyCommand
	}
	return cmd, nil
}

// WriteText writes a plain-text response. The response is delimited by
// connection close, not by a terminator.
func WriteText(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

// WriteBinaryFrame writes a 4-byte big-endian unsigned length followed
// by exactly that many payload bytes.
func WriteBinaryFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxBinaryFrame {
		return fmt.Errorf("payload is %d bytes: %w", len(payload), ErrFrameTooLarge)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadBinaryFrame reads a length-prefixed binary frame, accumulating
// until the full announced byte count has arrived. EOF is never a frame
// delimiter: a short read of either the prefix or the payload is a
// truncation error, and a partially-read frame is never returned.
func ReadBinaryFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", errors.Join(ErrTruncatedPayload, err))
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxBinaryFrame {
		return nil, fmt.Errorf("announced length %d: %w", length, ErrFrameTooLarge)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", errors.Join(ErrTruncatedPayload, err))
	}
	return payload, nil
}

// CommandKind classifies a legacy text command.
type CommandKind int

const (
	// KindExit is an exit/quit command (case-insensitive).
	KindExit CommandKind = iota
	// KindLoadCSV is a bare filename ending in .csv: an implicit
	// dataset upload against the connection-bound session.
	KindLoadCSV
	// KindChart is the bare chart trigger token: an implicit plot with
	// the last-configured plot parameters.
	KindChart
	// KindOther is anything else. The legacy protocol dispatched this
	// to unrestricted code execution; under the whitelist model it is
	// always rejected.
	KindOther
)

// Command is a classified legacy request.
type Command struct {
	Kind CommandKind
	// Filename is set for KindLoadCSV.
	Filename string
	// Raw is the original command text.
	Raw string
}

// Classify maps raw legacy text onto its dispatch rule.
func Classify(raw string) Command {
	cmd := Command{Raw: raw}
	switch {
	case strings.EqualFold(raw, "exit"), strings.EqualFold(raw, "quit"):
		cmd.Kind = KindExit
	case strings.HasSuffix(strings.ToLower(raw), ".csv"):
		cmd.Kind = KindLoadCSV
		cmd.Filename = raw
	case raw == "chart":
		cmd.Kind = KindChart
	default:
		cmd.Kind = KindOther
	}
	return cmd
}
