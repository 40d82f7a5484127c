// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tomtom215/dropscout/internal/metrics"
)

func sampleCount(t *testing.T, method, route, status string) uint64 {
	t.Helper()
	obs, err := metrics.APIRequestDuration.GetMetricWithLabelValues(method, route, status)
	if err != nil {
		t.Fatal(err)
	}
	m := &dto.Metric{}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatal(err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheusMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/implicit", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		name   string
		target string
		route  string
		status string
	}{
		{"pattern not raw path", "/items/42", "/items/{id}", "418"},
		{"implicit 200", "/implicit", "/implicit", "200"},
		{"no route", "/missing", UnmatchedRoute, "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := sampleCount(t, http.MethodGet, tt.route, tt.status)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.target, nil))
			if got := sampleCount(t, http.MethodGet, tt.route, tt.status); got != before+1 {
				t.Errorf("samples for %s %s = %d, want %d", tt.route, tt.status, got, before+1)
			}
		})
	}
}
