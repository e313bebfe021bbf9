// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package httpapi is the structured HTTP/JSON surface of the gateway:
// multipart upload, the execute envelope, the websocket push channel and
// session administration.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/metrics"
)

// RouteConfig tunes the HTTP surface middleware.
type RouteConfig struct {
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit rate.Limit
	RateBurst int
	// TracingEnabled attaches the otelgin middleware.
	TracingEnabled bool
	ServiceName    string
}

// SetupRoutes wires the gateway endpoints onto the router.
func SetupRoutes(router *gin.Engine, cfg RouteConfig, d *dispatch.Dispatcher, hub *Hub, m *metrics.Metrics) {
	router.Use(RequestLogger())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "viz-gateway"
		}
		router.Use(otelgin.Middleware(name))
	}

	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	store := d.Store()

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(RateLimiter(cfg.RateLimit, cfg.RateBurst))
	{
		v1.POST("/upload", UploadDataset(d, m))
		v1.POST("/execute", Execute(d, m))
		v1.GET("/ws", HandleWS(d, hub))
		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", ListSessions(store))
			sessions.GET("/:sessionId", GetSession(store))
			sessions.DELETE("/:sessionId", DeleteSession(store))
		}
	}
}
