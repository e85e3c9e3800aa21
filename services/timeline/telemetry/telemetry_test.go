// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaultConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("TIMELINE_ENV", "")
		t.Setenv("OTEL_TRACES_EXPORTER", "")
		t.Setenv("OTEL_METRICS_EXPORTER", "")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

		cfg := DefaultConfig()
		assert.Equal(t, "timeline", cfg.ServiceName)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, ExporterNone, cfg.TraceExporter)
		assert.Equal(t, "prometheus", cfg.MetricExporter)
		assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("TIMELINE_ENV", "production")
		t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
		t.Setenv("OTEL_METRICS_EXPORTER", "stdout")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

		cfg := DefaultConfig()
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "otlp", cfg.TraceExporter)
		assert.Equal(t, "stdout", cfg.MetricExporter)
		assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	})
}

func TestInit(t *testing.T) {
	t.Run("nil context", func(t *testing.T) {
		_, err := Init(nil, DefaultConfig()) //nolint:staticcheck
		assert.ErrorIs(t, err, ErrNilContext)
	})

	t.Run("everything disabled", func(t *testing.T) {
		shutdown, err := Init(context.Background(), Config{TraceExporter: ExporterNone, MetricExporter: ExporterNone})
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("stdout exporters", func(t *testing.T) {
		shutdown, err := Init(context.Background(), Config{
			ServiceName:    "timeline-test",
			TraceExporter:  "stdout",
			MetricExporter: "stdout",
		})
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("prometheus exposes a handler", func(t *testing.T) {
		shutdown, err := Init(context.Background(), Config{TraceExporter: ExporterNone, MetricExporter: "prometheus"})
		require.NoError(t, err)
		defer func() { _ = shutdown(context.Background()) }()
		assert.NotNil(t, MetricsHandler())
	})

	t.Run("unknown trace exporter", func(t *testing.T) {
		_, err := Init(context.Background(), Config{TraceExporter: "zipkin", MetricExporter: ExporterNone})
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})

	t.Run("unknown metric exporter", func(t *testing.T) {
		_, err := Init(context.Background(), Config{TraceExporter: ExporterNone, MetricExporter: "statsd"})
		assert.ErrorIs(t, err, ErrUnknownExporter)
	})
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestGinMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	router := gin.New()
	router.Use(GinMetrics(metrics))
	router.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/sessions/a", "/sessions/b", "/boom", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := collect(t, reader)

	requests, ok := got["timeline_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byRoute := map[string]int64{}
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		byRoute[route.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"/sessions/:id": 2, "/boom": 1, "unmatched": 1}, byRoute)

	errs, ok := got["timeline_http_errors_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	active, ok := got["timeline_http_active_requests"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(0), active.DataPoints[0].Value)
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, errors.New("bad"), attribute.String("session_id", "s"))
	RecordError(span, nil)
	RecordError(nil, errors.New("ignored"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "bad", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestLoggerWithTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	assert.Same(t, logger, LoggerWithTrace(context.Background(), logger))
	assert.Empty(t, TraceID(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	LoggerWithTrace(ctx, logger).Info("hello")
	assert.Contains(t, buf.String(), `"trace_id":"`+TraceID(ctx)+`"`)
	assert.Contains(t, buf.String(), `"span_id"`)
	assert.Len(t, TraceID(ctx), 32)
}
