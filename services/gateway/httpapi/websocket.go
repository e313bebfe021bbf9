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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// HandleWS serves the per-session push channel. The client identifies
// its session with the session_id query parameter; commands sent on the
// socket are answered with PROGRESS, then RESULT or ERROR pushes, and
// PING heartbeats get a PONG.
func HandleWS(d *dispatch.Dispatcher, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("httpapi: websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		// Same ceiling as the HTTP execute path; an oversized frame
		// closes the socket with a message-too-big close code.
		ws.SetReadLimit(validation.MaxRequestBytes)

		sessionID := c.Query("session_id")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		hub.Register(sessionID, ws)
		defer hub.Unregister(sessionID, ws)

		for {
			var msg wire.PushMessage
			if err := ws.ReadJSON(&msg); err != nil {
				slog.Info("httpapi: websocket client disconnected",
					"session_id", sessionID, "error", err.Error())
				return
			}

			switch msg.Type {
			case wire.PushPing:
				hub.Notify(sessionID, wire.PushMessage{
					Type:      wire.PushPong,
					Timestamp: time.Now().Unix(),
				})

			case wire.PushCommand:
				requestID := msg.RequestID
				if requestID == "" {
					requestID = uuid.NewString()
				}
				hub.Notify(sessionID, wire.PushMessage{
					Type:      wire.PushProgress,
					RequestID: requestID,
					Progress:  10,
					Message:   "Processing command...",
				})

				resp := d.Dispatch(c.Request.Context(), dispatch.Request{
					Operation: msg.Command,
					Params:    msg.Params,
					SessionID: sessionID,
				})
				if resp.Success {
					hub.Notify(sessionID, wire.PushMessage{
						Type:      wire.PushResult,
						RequestID: requestID,
						Result:    resp.Result,
					})
				} else {
					hub.Notify(sessionID, wire.PushMessage{
						Type:      wire.PushError,
						RequestID: requestID,
						Error:     resp.Err.Error(),
					})
				}

			default:
				hub.Notify(sessionID, wire.PushMessage{
					Type:  wire.PushError,
					Error: "unsupported message type: " + msg.Type,
				})
			}
		}
	}
}
