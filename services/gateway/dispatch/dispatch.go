// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatch routes validated requests to whitelisted operation
// implementations. Every request walks a fixed state machine: Validated,
// SessionResolved, Executed, Responded, with Rejected as the only other
// terminal. Execution is unreachable without passing both the whitelist
// check and session resolution, and an implementation only ever sees the
// parameter keys its whitelist entry declares.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/session"
)

// State is the dispatch state machine position a request reached.
type State int

const (
	// StateRejected is terminal: the request failed validation or
	// session resolution and no operation ran.
	StateRejected State = iota
	// StateValidated means the whitelist check passed.
	StateValidated
	// StateSessionResolved means the session id resolved to a live session.
	StateSessionResolved
	// StateExecuted means the operation ran (it may still have failed
	// for domain reasons).
	StateExecuted
	// StateResponded is the successful terminal state.
	StateResponded
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateSessionResolved:
		return "session_resolved"
	case StateExecuted:
		return "executed"
	case StateResponded:
		return "responded"
	default:
		return "rejected"
	}
}

// Request is a parsed, not-yet-validated command.
type Request struct {
	Operation string
	Params    map[string]any
	SessionID string
}

// Response is the dispatch outcome. State records how far the request
// got, which distinguishes a whitelist rejection from a domain failure
// inside an operation.
type Response struct {
	State   State
	Success bool
	Result  any
	Err     error
}

// OperationError is a domain failure raised by an operation
// implementation: an absent column, a non-numeric axis, no dataset
// loaded. It is surfaced to the caller verbatim, never swallowed.
type OperationError struct {
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s: %v", e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ErrNoDataset is the no-dataset domain failure. The text is the exact
// legacy wire message minus the "Error: " prefix; the TCP listener
// depends on the concatenation being bit-identical to the original
// protocol, so it is capitalized unlike an ordinary Go error.
var ErrNoDataset = errors.New("No dataset loaded.")

// ErrTimeout means the operation overran its wall-clock ceiling and was
// abandoned.
var ErrTimeout = errors.New("operation timed out")

// DefaultTimeout bounds a single operation's wall-clock run time.
const DefaultTimeout = 30 * time.Second

// Observer receives one callback per dispatched request, for metrics.
type Observer interface {
	ObserveDispatch(operation, outcome string, elapsed time.Duration)
}

// handler runs one whitelisted operation against a resolved session.
// params only ever contains keys from the operation's allowed set.
type handler func(ctx context.Context, s *session.Session, params map[string]any) (any, error)

// Dispatcher owns the operation table and routes requests through the
// state machine. Safe for concurrent use.
type Dispatcher struct {
	store    *session.Store
	table    validation.OperationTable
	handlers map[string]handler
	timeout  time.Duration
	obs      Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides the per-operation wall-clock ceiling.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(dp *Dispatcher) { dp.obs = obs }
}

// New builds a Dispatcher over the session store. It loads the embedded
// operation whitelist and refuses to start when the whitelist and the
// handler set disagree: an operation the table allows but no handler
// implements (or the reverse) is a build mistake, not a runtime
// condition.
func New(store *session.Store, opts ...Option) (*Dispatcher, error) {
	table, err := LoadOperationTable()
	if err != nil {
		return nil, fmt.Errorf("load operation table: %w", err)
	}
	d := &Dispatcher{
		store:   store,
		table:   table,
		timeout: DefaultTimeout,
	}
	d.handlers = map[string]handler{
		"upload_dataset":      d.opUploadDataset,
		"describe":            d.opDescribe,
		"corr":                d.opCorr,
		"head":                d.opHead,
		"tail":                d.opTail,
		"info":                d.opInfo,
		"statistical_summary": d.opStatisticalSummary,
		"plot":                d.opPlot,
	}
	for _, name := range table.Names() {
		if _, ok := d.handlers[name]; !ok {
			return nil, fmt.Errorf("whitelisted operation %q has no handler", name)
		}
	}
	for name := range d.handlers {
		if _, ok := table[name]; !ok {
			return nil, fmt.Errorf("handler %q is not in the operation whitelist", name)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Operations returns the whitelisted operation names in sorted order.
func (d *Dispatcher) Operations() []string { return d.table.Names() }

// Store exposes the underlying session store for transport-level
// lifecycle calls (create on upload, drop on disconnect).
func (d *Dispatcher) Store() *session.Store { return d.store }

// Dispatch runs one request through the state machine and reports the
// outcome to the observer.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := d.dispatch(ctx, req)
	if d.obs != nil {
		outcome := "success"
		if !resp.Success {
			outcome = resp.State.String()
			if resp.State == StateExecuted {
				outcome = "operation_error"
			}
		}
		d.obs.ObserveDispatch(req.Operation, outcome, time.Since(start))
	}
	if resp.Err != nil {
		slog.Debug("dispatch: request failed",
			"operation", req.Operation,
			"state", resp.State.String(),
			"error", resp.Err,
		)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Response {
	if err := validation.ValidateRequest(d.table, req.Operation, req.Params); err != nil {
		return Response{State: StateRejected, Err: err}
	}
	if _, ok := d.store.Get(req.SessionID); !ok {
		return Response{
			State: StateRejected,
			Err:   fmt.Errorf("session %q: %w", req.SessionID, session.ErrSessionNotFound),
		}
	}

	h := d.handlers[req.Operation]
	params := filterParams(d.table, req.Operation, req.Params)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var result any
		err := d.store.WithSession(req.SessionID, func(s *session.Session) error {
			var opErr error
			result, opErr = h(ctx, s, params)
			return opErr
		})
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return Response{State: StateExecuted, Err: out.err}
		}
		return Response{State: StateResponded, Success: true, Result: out.result}
	case <-ctx.Done():
		// Fatal cancel: the response goes out now; the abandoned
		// goroutine still holds the session lock until it finishes, so
		// later requests for the session queue rather than race.
		return Response{
			State: StateExecuted,
			Err: &OperationError{
				Operation: req.Operation,
				Err:       fmt.Errorf("%w after %s", ErrTimeout, d.timeout),
			},
		}
	}
}

// filterParams copies exactly the allowed keys out of the raw parameter
// map. The raw map is never handed to an implementation, even after it
// passed validation.
func filterParams(table validation.OperationTable, op string, raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, val := range raw {
		if table.Allows(op, key) {
			out[key] = val
		}
	}
	return out
}
