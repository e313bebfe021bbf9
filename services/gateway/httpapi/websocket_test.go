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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

func dialWS(t *testing.T, ts *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readPush(t *testing.T, ws *websocket.Conn) wire.PushMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wire.PushMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestWebSocket_PingPong(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	ts := httptest.NewServer(router)
	defer ts.Close()

	ws := dialWS(t, ts, "")
	require.NoError(t, ws.WriteJSON(wire.PushMessage{Type: wire.PushPing}))

	msg := readPush(t, ws)
	assert.Equal(t, wire.PushPong, msg.Type)
	assert.NotZero(t, msg.Timestamp)
}

func TestWebSocket_CommandFlow(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	ts := httptest.NewServer(router)
	defer ts.Close()

	uploaded := uploadCSV(t, router, "data.csv", "a,b\n1,2\n3,4\n")
	ws := dialWS(t, ts, uploaded.SessionID)

	require.NoError(t, ws.WriteJSON(wire.PushMessage{
		Type:      wire.PushCommand,
		RequestID: "req-1",
		Command:   "describe",
	}))

	progress := readPush(t, ws)
	assert.Equal(t, wire.PushProgress, progress.Type)
	assert.Equal(t, "req-1", progress.RequestID)

	result := readPush(t, ws)
	assert.Equal(t, wire.PushResult, result.Type)
	assert.Equal(t, "req-1", result.RequestID)
	assert.NotNil(t, result.Result)
}

func TestWebSocket_CommandError(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	ts := httptest.NewServer(router)
	defer ts.Close()

	// No upload happened for this session id, so describe must fail.
	ws := dialWS(t, ts, "33333333-4444-5555-6666-777777777777")
	require.NoError(t, ws.WriteJSON(wire.PushMessage{
		Type:    wire.PushCommand,
		Command: "describe",
	}))

	progress := readPush(t, ws)
	assert.Equal(t, wire.PushProgress, progress.Type)

	errMsg := readPush(t, ws)
	assert.Equal(t, wire.PushError, errMsg.Type)
	assert.Contains(t, errMsg.Error, "session")
}

func TestWebSocket_OversizedMessageClosesSocket(t *testing.T) {
	router, _ := newTestRouter(t, RouteConfig{})
	ts := httptest.NewServer(router)
	defer ts.Close()

	ws := dialWS(t, ts, "")
	require.NoError(t, ws.WriteJSON(wire.PushMessage{
		Type:    wire.PushCommand,
		Command: strings.Repeat("a", 11*1024),
	}))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wire.PushMessage
	err := ws.ReadJSON(&msg)
	require.Error(t, err)
	assert.False(t, websocket.IsUnexpectedCloseError(err, websocket.CloseMessageTooBig, websocket.CloseAbnormalClosure))
}

func TestHub_NotifyUnknownSessionIsNoOp(t *testing.T) {
	hub := NewHub(nil)
	// Must not panic or block.
	hub.Notify("absent", wire.PushMessage{Type: wire.PushResult})
	assert.False(t, hub.Connected("absent"))
}
