// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically drops sessions that sat idle past the store TTL,
// releasing their datasets without waiting for an explicit disconnect.
// Uses the ticker + done channel pattern for graceful shutdown.
type Reaper struct {
	store    *Store
	interval time.Duration

	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReaper creates a reaper for the store. A non-positive interval
// defaults to one minute.
func NewReaper(store *Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background cleanup goroutine. Only one reaper
// should run per store.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("session reaper already running")
	}
	r.running = true

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.store.reapIdle(); n > 0 {
					slog.Info("session.reaper: reclaimed idle sessions",
						"reaped", n,
						"remaining", r.store.Count(),
					)
				}
			case <-r.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop signals the cleanup goroutine to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.done)
}
