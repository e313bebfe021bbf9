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
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianViz/services/gateway/metrics"
	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

// wsClient wraps a websocket connection with a write mutex; gorilla
// allows at most one concurrent writer per connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub is the per-session push channel registry. Delivery is
// fire-and-forget: a Notify for a session with no registered channel,
// or whose channel errors, drops the message. At most one channel per
// session; a reconnect replaces the previous registration.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient

	metrics *metrics.Metrics
}

// NewHub creates an empty push registry. metrics may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		metrics: m,
	}
}

// Register binds a websocket to a session id, replacing and closing any
// previous channel for the same session.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	prev := h.clients[sessionID]
	h.clients[sessionID] = &wsClient{conn: conn}
	n := len(h.clients)
	h.mu.Unlock()

	if prev != nil {
		_ = prev.conn.Close()
	} else if h.metrics != nil {
		h.metrics.ActiveWebsockets.Inc()
	}
	slog.Info("httpapi: websocket registered", "session_id", sessionID, "active", n)
}

// Unregister removes the session's channel if conn is still the one
// registered. A stale conn from before a reconnect is ignored.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if ok && client.conn == conn {
		delete(h.clients, sessionID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.ActiveWebsockets.Dec()
	}
}

// Notify pushes a message to the session's channel, best-effort. An
// absent session is a no-op; a write failure is logged and dropped, not
// retried.
func (h *Hub) Notify(sessionID string, msg wire.PushMessage) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := client.writeJSON(msg); err != nil {
		slog.Warn("httpapi: push delivery failed",
			"session_id", sessionID,
			"type", msg.Type,
			"error", err,
		)
	}
}

// Connected reports whether the session has a registered push channel.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}
