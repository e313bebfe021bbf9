// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianViz/pkg/logging"
	"github.com/AleutianAI/AleutianViz/services/gateway/config"
	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/httpapi"
	"github.com/AleutianAI/AleutianViz/services/gateway/metrics"
	"github.com/AleutianAI/AleutianViz/services/gateway/session"
	"github.com/AleutianAI/AleutianViz/services/gateway/tcpserver"
)

const serviceName = "viz-gateway"

// runServe builds the gateway from configuration and blocks until a
// shutdown signal or a fatal server error.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Install(logging.Config{
		Level:   parseLevel(cfg.LogLevel),
		Service: serviceName,
		JSON:    true,
		LogDir:  cfg.LogDir,
	})
	defer logger.Close()

	slog.Info("Starting gateway",
		"http_addr", cfg.HTTPAddr,
		"tcp_addr", cfg.TCPAddr,
		"data_dir", cfg.DataDir,
		"tracing", cfg.TracingEnabled,
	)

	if cfg.TracingEnabled {
		cleanup, err := initTracer(cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer cleanup(context.Background())
	}

	store := session.NewStore(session.Config{
		MaxFileBytes: cfg.MaxFileBytes,
		MaxRows:      cfg.MaxRows,
		IdleTTL:      cfg.IdleTTL,
	})
	m := metrics.New(prometheus.DefaultRegisterer)
	metrics.RegisterSessionGauge(prometheus.DefaultRegisterer, store.Count)

	d, err := dispatch.New(store,
		dispatch.WithTimeout(cfg.DispatchTimeout),
		dispatch.WithObserver(m),
	)
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.SetupRoutes(router, httpapi.RouteConfig{
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateBurst:      cfg.RateBurst,
		TracingEnabled: cfg.TracingEnabled,
		ServiceName:    serviceName,
	}, d, httpapi.NewHub(m), m)

	legacy := tcpserver.NewServer(tcpserver.Config{
		ListenAddr: cfg.TCPAddr,
		DataDir:    cfg.DataDir,
	}, d)

	reaper := session.NewReaper(store, cfg.ReapInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := reaper.Start(ctx); err != nil {
			return fmt.Errorf("session reaper: %w", err)
		}
		<-ctx.Done()
		reaper.Stop()
		return nil
	})

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := legacy.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("tcp server: %w", err)
		}
		return nil
	})

	// Shut the HTTP server down once the context ends, whether from a
	// signal or a sibling goroutine failing.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("Gateway stopped")
	return err
}

// initTracer sets up OTLP trace export to the configured collector.
// The connection is insecure gRPC, appropriate for internal networks.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
