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

// ExecuteRequest is the structured request envelope: exactly the fields
// operation, params and session_id.
type ExecuteRequest struct {
	Operation string         `json:"operation" binding:"required"`
	Params    map[string]any `json:"params"`
	SessionID string         `json:"session_id" binding:"required"`
}

// ExecuteResponse is the structured response envelope. Success carries
// Result; failure carries Error.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UploadResponse reports a successful dataset upload.
type UploadResponse struct {
	Success     bool     `json:"success"`
	SessionID   string   `json:"session_id"`
	RowCount    int      `json:"row_count"`
	ColumnNames []string `json:"column_names"`
}

// Push message types for the per-session asynchronous channel. Delivery
// is fire-and-forget: a momentarily disconnected channel drops messages.
const (
	PushPing     = "PING"
	PushPong     = "PONG"
	PushCommand  = "COMMAND"
	PushProgress = "PROGRESS"
	PushResult   = "RESULT"
	PushError    = "ERROR"
)

// PushMessage is a server-initiated message on the session push channel,
// and also the client→server command shape on the same socket.
type PushMessage struct {
	Type      string         `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Command   string         `json:"command,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Progress  int            `json:"progress,omitempty"`
	Message   string         `json:"message,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}
