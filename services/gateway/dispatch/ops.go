// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianViz/pkg/validation"
	"github.com/AleutianAI/AleutianViz/services/gateway/dataset"
	"github.com/AleutianAI/AleutianViz/services/gateway/plot"
	"github.com/AleutianAI/AleutianViz/services/gateway/session"
)

// defaultPreviewRows is the head/tail row count when the client omits n.
const defaultPreviewRows = 5

// RowsResult is the head/tail payload.
type RowsResult struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

func opError(op string, err error) error {
	return &OperationError{Operation: op, Err: err}
}

// requireFrame returns the session's dataset or the no-dataset domain
// failure.
func requireFrame(op string, s *session.Session) (*dataset.Frame, error) {
	f := s.Frame()
	if f == nil {
		return nil, opError(op, ErrNoDataset)
	}
	return f, nil
}

// opUploadDataset rejects file uploads over the execute path. The file
// bytes travel out of band on the upload endpoint; the whitelist entry
// exists so the operation name validates, not so it executes here.
func (d *Dispatcher) opUploadDataset(_ context.Context, _ *session.Session, _ map[string]any) (any, error) {
	return nil, opError("upload_dataset",
		fmt.Errorf("upload_dataset carries a file payload and must use the upload endpoint"))
}

func (d *Dispatcher) opDescribe(_ context.Context, s *session.Session, _ map[string]any) (any, error) {
	f, err := requireFrame("describe", s)
	if err != nil {
		return nil, err
	}
	stats, err := f.Describe()
	if err != nil {
		return nil, opError("describe", err)
	}
	return stats, nil
}

func (d *Dispatcher) opCorr(ctx context.Context, s *session.Session, _ map[string]any) (any, error) {
	f, err := requireFrame("corr", s)
	if err != nil {
		return nil, err
	}
	m, err := f.Corr(ctx)
	if err != nil {
		return nil, opError("corr", err)
	}
	return m, nil
}

func (d *Dispatcher) opHead(_ context.Context, s *session.Session, params map[string]any) (any, error) {
	f, err := requireFrame("head", s)
	if err != nil {
		return nil, err
	}
	rows := f.Head(intParam(params, "n", defaultPreviewRows))
	return RowsResult{Rows: rows, Count: len(rows)}, nil
}

func (d *Dispatcher) opTail(_ context.Context, s *session.Session, params map[string]any) (any, error) {
	f, err := requireFrame("tail", s)
	if err != nil {
		return nil, err
	}
	rows := f.Tail(intParam(params, "n", defaultPreviewRows))
	return RowsResult{Rows: rows, Count: len(rows)}, nil
}

func (d *Dispatcher) opInfo(_ context.Context, s *session.Session, _ map[string]any) (any, error) {
	f, err := requireFrame("info", s)
	if err != nil {
		return nil, err
	}
	return f.InfoSummary(), nil
}

func (d *Dispatcher) opStatisticalSummary(_ context.Context, s *session.Session, _ map[string]any) (any, error) {
	f, err := requireFrame("statistical_summary", s)
	if err != nil {
		return nil, err
	}
	stats, err := f.StatisticalSummary()
	if err != nil {
		return nil, opError("statistical_summary", err)
	}
	return stats, nil
}

func (d *Dispatcher) opPlot(ctx context.Context, s *session.Session, params map[string]any) (any, error) {
	f, err := requireFrame("plot", s)
	if err != nil {
		return nil, err
	}
	p := plot.Params{
		Type:   stringParam(params, "type"),
		X:      stringParam(params, "x"),
		Y:      stringParam(params, "y"),
		Title:  stringParam(params, "title"),
		XLabel: stringParam(params, "xlabel"),
		YLabel: stringParam(params, "ylabel"),
		Format: stringParam(params, "format"),
	}
	if p.Format == "" {
		p.Format = plot.FormatSpec
	}
	chart, err := plot.Render(ctx, f, p)
	if err != nil {
		return nil, opError("plot", err)
	}
	// Remember the parameters for the legacy bare chart trigger.
	s.SetLastPlot(p)
	return chart, nil
}

// LoadCSV runs the implicit legacy upload rule for a bare *.csv command:
// sanitize the declared filename first, open the bytes only for a name
// that passed, then parse them into the connection-bound session.
func (d *Dispatcher) LoadCSV(sessionID, filename string, open func(string) (io.ReadCloser, error)) (dataset.Summary, error) {
	clean, err := validation.SanitizeFilename(filename)
	if err != nil {
		return dataset.Summary{}, err
	}
	rc, err := open(clean)
	if err != nil {
		// The opener's message goes to the wire verbatim; do not wrap.
		return dataset.Summary{}, err
	}
	defer rc.Close()
	return d.store.LoadDataset(sessionID, rc)
}

// RenderChartPNG runs the implicit legacy plot rule for the bare chart
// trigger: render PNG bytes with the session's last-configured plot
// parameters, or a deterministic default when none were configured yet.
func (d *Dispatcher) RenderChartPNG(ctx context.Context, sessionID string) ([]byte, error) {
	resp := d.dispatchLegacyChart(ctx, sessionID)
	if resp.Err != nil {
		return nil, resp.Err
	}
	chart, ok := resp.Result.(*plot.Chart)
	if !ok || len(chart.PNG) == 0 {
		return nil, opError("plot", fmt.Errorf("chart render produced no image"))
	}
	return chart.PNG, nil
}

// dispatchLegacyChart walks the same states as Dispatch but resolves
// the plot parameters from session state instead of the request.
func (d *Dispatcher) dispatchLegacyChart(ctx context.Context, sessionID string) Response {
	if _, ok := d.store.Get(sessionID); !ok {
		return Response{
			State: StateRejected,
			Err:   fmt.Errorf("session %q: %w", sessionID, session.ErrSessionNotFound),
		}
	}
	var png *plot.Chart
	err := d.store.WithSession(sessionID, func(s *session.Session) error {
		f, err := requireFrame("plot", s)
		if err != nil {
			return err
		}
		p, err := chartParams(f, s.LastPlot())
		if err != nil {
			return err
		}
		p.Format = plot.FormatPNG
		chart, err := plot.Render(ctx, f, p)
		if err != nil {
			return opError("plot", err)
		}
		png = chart
		return nil
	})
	if err != nil {
		return Response{State: StateExecuted, Err: err}
	}
	return Response{State: StateResponded, Success: true, Result: png}
}

// chartParams picks the parameters for a bare chart trigger. With prior
// plot params they win; otherwise a correlation heatmap when two or more
// numeric columns exist, else a histogram of the single numeric column.
func chartParams(f *dataset.Frame, last *plot.Params) (plot.Params, error) {
	if last != nil {
		return *last, nil
	}
	numeric := f.NumericColumns()
	switch {
	case len(numeric) >= 2:
		return plot.Params{Type: "heatmap"}, nil
	case len(numeric) == 1:
		return plot.Params{Type: "histogram", X: numeric[0]}, nil
	default:
		return plot.Params{}, opError("plot", dataset.ErrNoNumericColumns)
	}
}

// intParam reads an integer parameter, tolerating the float64 that JSON
// decoding produces for all numbers.
func intParam(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
