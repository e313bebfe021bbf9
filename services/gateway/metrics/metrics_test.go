// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispatch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDispatch("describe", "success", 15*time.Millisecond)
	m.ObserveDispatch("describe", "success", 5*time.Millisecond)
	m.ObserveDispatch("plot", "operation_error", time.Millisecond)

	assert.InDelta(t, 2.0,
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("describe", "success")), 0)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("plot", "operation_error")), 0)
}

func TestRecordValidationFailure(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordValidationFailure("unknown_operation")
	m.RecordValidationFailure("unknown_operation")
	m.RecordValidationFailure("path_traversal")

	assert.InDelta(t, 2.0,
		testutil.ToFloat64(m.ValidationFailuresTotal.WithLabelValues("unknown_operation")), 0)
	assert.InDelta(t, 1.0,
		testutil.ToFloat64(m.ValidationFailuresTotal.WithLabelValues("path_traversal")), 0)
}

func TestRecordUpload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordUpload(true)
	m.RecordUpload(false)
	m.RecordUpload(false)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("error")), 0)
}

func TestRegisterSessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	count := 3
	RegisterSessionGauge(reg, func() int { return count })

	families, err := reg.Gather()
	assert.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "aleutianviz_gateway_active_sessions" {
			found = true
			assert.InDelta(t, 3.0, mf.GetMetric()[0].GetGauge().GetValue(), 0)
		}
	}
	assert.True(t, found)
}
