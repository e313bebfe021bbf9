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
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/metrics"
	"github.com/AleutianAI/AleutianViz/services/gateway/session"
	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

func newTestRouter(t *testing.T, cfg RouteConfig) (*gin.Engine, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewStore(session.DefaultConfig())
	d, err := dispatch.New(store)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	router := gin.New()
	SetupRoutes(router, cfg, d, NewHub(m), m)
	return router, store
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func uploadCSV(t *testing.T, router *gin.Engine, filename, content string) wire.UploadResponse {
	t.Helper()
	body, contentType := multipartCSV(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp wire.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func execute(t *testing.T, router *gin.Engine, req wire.ExecuteRequest) (int, wire.ExecuteResponse) {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(raw))
	httpReq.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)

	var resp wire.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpload(t *testing.T) {
	t.Run("valid csv creates a session", func(t *testing.T) {
		router, store := newTestRouter(t, RouteConfig{})
		resp := uploadCSV(t, router, "data.csv", "a,b\n1,2\n3,4\n5,6\n")

		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, 3, resp.RowCount)
		assert.Equal(t, []string{"a", "b"}, resp.ColumnNames)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("traversal filename rejected", func(t *testing.T) {
		router, store := newTestRouter(t, RouteConfig{})
		body, contentType := multipartCSV(t, "../../etc/passwd.csv", "a\n1\n")
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, store.Count())
	})

	t.Run("malformed csv leaves no session behind", func(t *testing.T) {
		router, store := newTestRouter(t, RouteConfig{})
		body, contentType := multipartCSV(t, "data.csv", "a,b\n1\n")
		req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, store.Count())
	})
}

func TestExecute(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	uploaded := uploadCSV(t, router, "data.csv", "a,b\n1,10\n2,20\n3,30\n")

	t.Run("describe references uploaded columns", func(t *testing.T) {
		code, resp := execute(t, router, wire.ExecuteRequest{
			Operation: "describe",
			SessionID: uploaded.SessionID,
		})
		require.Equal(t, http.StatusOK, code)
		require.True(t, resp.Success)
		stats, ok := resp.Result.(map[string]any)
		require.True(t, ok)
		assert.Len(t, stats, 2)
		assert.Contains(t, stats, "a")
		assert.Contains(t, stats, "b")
	})

	t.Run("unknown operation is 400", func(t *testing.T) {
		code, resp := execute(t, router, wire.ExecuteRequest{
			Operation: "eval",
			SessionID: uploaded.SessionID,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, resp.Error, "unknown operation")
	})

	t.Run("unexpected parameter is 400", func(t *testing.T) {
		code, _ := execute(t, router, wire.ExecuteRequest{
			Operation: "describe",
			Params:    map[string]any{"code": "os.system"},
			SessionID: uploaded.SessionID,
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown session is 404, not 400", func(t *testing.T) {
		code, resp := execute(t, router, wire.ExecuteRequest{
			Operation: "describe",
			SessionID: "11111111-2222-3333-4444-555555555555",
		})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Contains(t, resp.Error, "session")
	})

	t.Run("plot against absent column is an operation error", func(t *testing.T) {
		code, resp := execute(t, router, wire.ExecuteRequest{
			Operation: "plot",
			Params:    map[string]any{"type": "bar", "x": "z", "y": "b"},
			SessionID: uploaded.SessionID,
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, resp.Error, "z")
	})

	t.Run("oversized request body is 413", func(t *testing.T) {
		raw := []byte(`{"operation":"describe","session_id":"x","params":{"` +
			strings.Repeat("a", 11*1024) + `":1}}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("oversized chunked body is 413", func(t *testing.T) {
		raw := []byte(`{"operation":"describe","session_id":"x","params":{"` +
			strings.Repeat("a", 11*1024) + `":1}}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/execute", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		// Chunked transfer advertises no length up front.
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("missing envelope fields is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/execute",
			strings.NewReader(`{"params":{}}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionAdmin(t *testing.T) {
	router, store := newTestRouter(t, RouteConfig{})
	uploaded := uploadCSV(t, router, "data.csv", "a\n1\n2\n")

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+uploaded.SessionID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			HasDataset bool `json:"has_dataset"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.HasDataset)
	})

	t.Run("get absent is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+uploaded.SessionID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, store.Count())
	})
}

func TestRateLimiter(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{RateLimit: rate.Limit(1), RateBurst: 1})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
