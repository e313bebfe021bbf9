// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/metrics"
	"github.com/AleutianAI/AleutianViz/services/gateway/session"
	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UploadDataset accepts a multipart CSV upload. Every successful upload
// creates a fresh session; nothing is recreated implicitly on a dropped
// id.
func UploadDataset(d *dispatch.Dispatcher, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
			return
		}

		if _, err := validation.SanitizeFilename(fileHeader.Filename); err != nil {
			if m != nil {
				m.RecordValidationFailure(filenameReason(err))
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer f.Close()

		sess := d.Store().Create()
		summary, err := d.Store().LoadDataset(sess.ID, f)
		if err != nil {
			// The fresh session is useless without its dataset.
			d.Store().Drop(sess.ID)
			if m != nil {
				m.RecordUpload(false)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if m != nil {
			m.RecordUpload(true)
		}
		slog.Info("httpapi: dataset uploaded",
			"session_id", sess.ID,
			"filename", fileHeader.Filename,
			"rows", summary.Rows,
			"columns", len(summary.Columns),
		)
		c.JSON(http.StatusOK, wire.UploadResponse{
			Success:     true,
			SessionID:   sess.ID,
			RowCount:    summary.Rows,
			ColumnNames: summary.Columns,
		})
	}
}

// Execute runs one structured command through the dispatcher.
func Execute(d *dispatch.Dispatcher, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := validation.ValidateRequestSize(int(c.Request.ContentLength)); err != nil {
			if m != nil {
				m.RecordValidationFailure("request_too_large")
			}
			c.JSON(http.StatusRequestEntityTooLarge,
				wire.ExecuteResponse{Error: err.Error()})
			return
		}
		// Chunked requests report ContentLength -1, so the ceiling must
		// also bound the body read itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, validation.MaxRequestBytes)

		var req wire.ExecuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				if m != nil {
					m.RecordValidationFailure("request_too_large")
				}
				c.JSON(http.StatusRequestEntityTooLarge,
					wire.ExecuteResponse{Error: validation.ErrRequestTooLarge.Error()})
				return
			}
			c.JSON(http.StatusBadRequest,
				wire.ExecuteResponse{Error: "request must carry operation, params and session_id"})
			return
		}

		resp := d.Dispatch(c.Request.Context(), dispatch.Request{
			Operation: req.Operation,
			Params:    req.Params,
			SessionID: req.SessionID,
		})
		writeDispatchResponse(c, m, resp)
	}
}

// writeDispatchResponse maps a dispatch outcome onto the HTTP surface.
// Session-not-found is 404, distinct from the 400 validation family: the
// client should re-upload, not fix the request shape.
func writeDispatchResponse(c *gin.Context, m *metrics.Metrics, resp dispatch.Response) {
	if resp.Success {
		c.JSON(http.StatusOK, wire.ExecuteResponse{Success: true, Result: resp.Result})
		return
	}

	status := http.StatusBadRequest
	switch {
	case errors.Is(resp.Err, session.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(resp.Err, validation.ErrUnknownOperation):
		if m != nil {
			m.RecordValidationFailure("unknown_operation")
		}
	case errors.Is(resp.Err, validation.ErrUnexpectedParameter):
		if m != nil {
			m.RecordValidationFailure("unexpected_parameter")
		}
	}
	c.JSON(status, wire.ExecuteResponse{Error: resp.Err.Error()})
}

// ListSessions returns the live session ids with last-used timestamps.
func ListSessions(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := store.Snapshot()
		out := make([]gin.H, 0, len(snapshot))
		for id, lastUsed := range snapshot {
			out = append(out, gin.H{"session_id": id, "last_used_at": lastUsed})
		}
		c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
	}
}

// GetSession returns one session's metadata and dataset summary.
func GetSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		s, ok := store.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		body := gin.H{
			"session_id":  s.ID,
			"created_at":  s.CreatedAt,
			"has_dataset": false,
		}
		if frame, ok := store.Dataset(id); ok {
			body["has_dataset"] = true
			body["dataset"] = frame.Summary()
		}
		c.JSON(http.StatusOK, body)
	}
}

// DeleteSession drops a session and its dataset. Idempotent.
func DeleteSession(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		store.Drop(id)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}

// filenameReason extracts the reason code for metrics labeling.
func filenameReason(err error) string {
	var fnErr *validation.FilenameError
	if errors.As(err, &fnErr) {
		return string(fnErr.Reason)
	}
	return "filename"
}
