// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the per-session dataset mapping: one session,
// one dataset, exclusively. The Store is the sole writer of dataset
// handles; readers only ever observe a load in its before or after
// state, never partially applied.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/dataset"
	"github.com/AleutianAI/AleutianViz/services/gateway/plot"
	"github.com/google/uuid"
)

// ErrSessionNotFound means the session id is unknown. It is deliberately
// distinct from validation failure: the caller should re-establish a
// session (re-upload), not fix the request shape.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side context scoping exactly one dataset to one
// logical client. All fields behind mu are owned by the Store.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt time.Time

	// frame is the owned dataset handle; nil until the first load.
	// Loading a new dataset replaces it wholesale.
	frame *dataset.Frame

	// lastPlot remembers the plot parameters of the most recent plot
	// request, for the legacy bare "chart" trigger.
	lastPlot *plot.Params

	// mu serializes all requests against this session. A dataset load
	// can never race a read of the same session; unrelated sessions
	// proceed concurrently.
	mu sync.Mutex
}

// Frame returns the session's dataset handle, or nil when no dataset is
// loaded. Must only be called while holding the session via WithSession.
func (s *Session) Frame() *dataset.Frame { return s.frame }

// SetFrame replaces the dataset handle. Store-internal and
// WithSession-holding callers only.
func (s *Session) SetFrame(f *dataset.Frame) { s.frame = f }

// LastPlot returns the most recent plot parameters, or nil.
func (s *Session) LastPlot() *plot.Params { return s.lastPlot }

// SetLastPlot records plot parameters for the legacy chart trigger.
func (s *Session) SetLastPlot(p plot.Params) { s.lastPlot = &p }

// Config bounds the datasets a Store will accept and when idle sessions
// are reclaimed.
type Config struct {
	MaxFileBytes int64
	MaxRows      int
	IdleTTL      time.Duration
}

// DefaultConfig returns production defaults: 100 MiB uploads, one
// million rows, 30 minute idle TTL.
func DefaultConfig() Config {
	return Config{
		MaxFileBytes: 100 * 1024 * 1024,
		MaxRows:      1_000_000,
		IdleTTL:      30 * time.Minute,
	}
}

// Store is a concurrency-safe mapping from session id to its owned
// dataset. Dataset lifetime is owned here: sessions die by explicit
// Drop or by the idle reaper, never implicitly mid-operation.
type Store struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session

	// now is injectable for reaper tests.
	now func() time.Time
}

// NewStore creates an empty session store.
func NewStore(cfg Config) *Store {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultConfig().MaxFileBytes
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultConfig().MaxRows
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	return &Store{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create registers a new session with a globally unique, unguessable
// identifier (uuid v4: 122 bits of randomness resists enumeration).
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session for id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// WithSession runs fn while holding the session's lock, serializing it
// against every other request for the same session. The lock is
// released even when fn fails or panics, so an abruptly disconnected
// client cannot wedge the session.
func (st *Store) WithSession(id string, fn func(*Session) error) error {
	s, ok := st.Get(id)
	if !ok {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUsedAt = st.now()
	return fn(s)
}

// LoadDataset parses CSV bytes into the session, replacing any prior
// dataset. A failed parse or an over-ceiling input leaves the previous
// dataset untouched; there is no partial replace and no truncation.
func (st *Store) LoadDataset(id string, r io.Reader) (dataset.Summary, error) {
	var summary dataset.Summary
	err := st.WithSession(id, func(s *Session) error {
		raw, err := io.ReadAll(io.LimitReader(r, st.cfg.MaxFileBytes+1))
		if err != nil {
			return fmt.Errorf("read dataset: %w", err)
		}
		if err := validation.ValidateFileSize(int64(len(raw)), st.cfg.MaxFileBytes); err != nil {
			return err
		}
		frame, err := dataset.Parse(bytes.NewReader(raw), st.cfg.MaxRows)
		if err != nil {
			return err
		}
		s.SetFrame(frame)
		summary = frame.Summary()
		return nil
	})
	return summary, err
}

// Dataset returns the session's dataset handle for read access, or
// absent. The Store remains the sole writer; callers must not retain
// the frame across a subsequent load.
func (st *Store) Dataset(id string) (*dataset.Frame, bool) {
	s, ok := st.Get(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, false
	}
	return s.frame, true
}

// Drop releases the session and its dataset. Idempotent: dropping an
// absent session is not an error.
func (st *Store) Drop(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Snapshot returns the ids and last-used timestamps of all sessions.
func (st *Store) Snapshot() map[string]time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]time.Time, len(st.sessions))
	for id, s := range st.sessions {
		out[id] = s.LastUsedAt
	}
	return out
}

// reapIdle drops every session idle past the TTL and returns the count.
func (st *Store) reapIdle() int {
	cutoff := st.now().Add(-st.cfg.IdleTTL)
	var expired []string
	st.mu.RLock()
	for id, s := range st.sessions {
		if s.LastUsedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	st.mu.RUnlock()
	for _, id := range expired {
		st.Drop(id)
	}
	return len(expired)
}
