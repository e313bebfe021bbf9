// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tcpserver serves the legacy text/binary protocol. The listener
// is strictly single-connection: accept, fully handle, close, never two
// clients at once. Each connection gets its own session, created on
// accept and dropped on disconnect, so a legacy client can never observe
// another client's dataset.
package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/dispatch"
	"github.com/AleutianAI/AleutianViz/services/gateway/wire"
)

// Legacy wire strings. The load and chart responses are bit-identical to
// the original protocol; existing clients match on them.
const (
	msgShuttingDown   = "Server shutting down"
	msgLoadedFormat   = "CSV loaded successfully. Shape: (%d, %d)"
	msgNotPermitted   = "Error: command not permitted"
	legacyErrorPrefix = "Error: "
)

// Config for the legacy listener.
type Config struct {
	ListenAddr string
	// DataDir is the directory legacy load commands resolve filenames
	// against. Filenames are sanitized before any path join.
	DataDir string
	// MaxCommandBytes bounds one text command. Zero means the shared
	// request ceiling.
	MaxCommandBytes int
	// ReadTimeout bounds the wait for the next command on an open
	// connection. Zero disables the deadline.
	ReadTimeout time.Duration
}

// DefaultConfig returns the legacy listener defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":5000",
		DataDir:         "data",
		MaxCommandBytes: validation.MaxRequestBytes,
		ReadTimeout:     5 * time.Minute,
	}
}

// Server is the legacy TCP endpoint.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	clientCount atomic.Int64
}

// NewServer creates a legacy listener over the dispatcher.
func NewServer(cfg Config, d *dispatch.Dispatcher) *Server {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultConfig().ListenAddr
	}
	if cfg.MaxCommandBytes <= 0 {
		cfg.MaxCommandBytes = validation.MaxRequestBytes
	}
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		conns:      make(map[net.Conn]struct{}),
	}
}

// ListenAndServe binds the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("legacy listener bind %s: %w", s.cfg.ListenAddr, err)
	}
	slog.Info("tcpserver: legacy listener up", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on an existing listener. Connections are
// handled one at a time in accept order; a second client queues in the
// kernel backlog until the first disconnects.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	slog.Info("tcpserver: client connected", "remote", remote, "active_clients", active)
	defer func() {
		remaining := s.clientCount.Add(-1)
		slog.Info("tcpserver: client disconnected", "remote", remote, "active_clients", remaining)
	}()

	// Connection-bound session: its dataset lives exactly as long as
	// the connection. Drop runs even on abrupt disconnect, and the
	// per-session lock inside the store is released by the dispatcher
	// regardless of how the handler exits.
	sess := s.dispatcher.Store().Create()
	defer s.dispatcher.Store().Drop(sess.ID)

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		raw, err := wire.ReadCommand(conn, s.cfg.MaxCommandBytes)
		if err != nil {
			if errors.Is(err, wire.ErrFrameTooLarge) {
				// Oversized frames are connection-fatal; tell the
				// client why before dropping it.
				_ = wire.WriteText(conn, legacyErrorPrefix+"command too large")
			}
			if !errors.Is(err, io.EOF) {
				slog.Debug("tcpserver: read failed", "remote", remote, "error", err)
			}
			return
		}

		if done := s.handleCommand(ctx, conn, sess.ID, raw); done {
			return
		}
	}
}

// handleCommand runs one classified legacy command. Returns true when
// the connection should close.
func (s *Server) handleCommand(ctx context.Context, conn net.Conn, sessionID, raw string) bool {
	cmd := wire.Classify(raw)
	switch cmd.Kind {
	case wire.KindExit:
		_ = wire.WriteText(conn, msgShuttingDown)
		return true

	case wire.KindLoadCSV:
		summary, err := s.dispatcher.LoadCSV(sessionID, cmd.Filename, s.openDataFile)
		if err != nil {
			_ = wire.WriteText(conn, legacyErrorPrefix+errText(err))
			return false
		}
		_ = wire.WriteText(conn, fmt.Sprintf(msgLoadedFormat, summary.Rows, len(summary.Columns)))
		return false

	case wire.KindChart:
		png, err := s.dispatcher.RenderChartPNG(ctx, sessionID)
		if err != nil {
			// Plain text on failure, length-prefixed binary on
			// success. The framing carries no discriminator; see the
			// wire package for the inherited ambiguity.
			_ = wire.WriteText(conn, legacyErrorPrefix+errText(err))
			return false
		}
		if err := wire.WriteBinaryFrame(conn, png); err != nil {
			slog.Warn("tcpserver: chart write failed", "error", err)
			return true
		}
		return false

	default:
		// The original protocol evaluated this as code. That path is
		// gone: anything outside the three legacy forms is refused.
		slog.Warn("tcpserver: rejected legacy command",
			"remote", conn.RemoteAddr().String(),
			"bytes", len(raw),
		)
		_ = wire.WriteText(conn, msgNotPermitted)
		return false
	}
}

// errText unwraps domain errors to their bare message so the wire text
// matches the original protocol, e.g. "Error: No dataset loaded."
func errText(err error) string {
	var opErr *dispatch.OperationError
	if errors.As(err, &opErr) {
		return opErr.Err.Error()
	}
	return err.Error()
}

// openDataFile resolves an already-sanitized filename inside the data
// directory. Not-found is reported in the original wire format.
func (s *Server) openDataFile(name string) (io.ReadCloser, error) {
	path := filepath.Join(s.cfg.DataDir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("File '%s' not found", name)
		}
		return nil, err
	}
	return f, nil
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeAllConns closes and drains tracked connections on shutdown.
func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
