// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/timeline/services/timeline/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig(), nil, nil))

	w := doRequest(t, router, http.MethodGet, "/v1/timeline/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandlers_HandleReady(t *testing.T) {
	svc := NewService(DefaultServiceConfig(), nil, nil)
	router := setupTestRouter(svc)

	w := doRequest(t, router, http.MethodGet, "/v1/timeline/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ReadyResponse](t, w).Ready)

	svc.Close()
	w = doRequest(t, router, http.MethodGet, "/v1/timeline/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlers_SessionLifecycle(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig(), nil, nil))

	w := doRequest(t, router, http.MethodPost, "/v1/timeline/sessions",
		`{"id":"doc","initial":{"text":""},"limit":10}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	created := decode[SessionSnapshot](t, w)
	assert.Equal(t, "doc", created.SessionID)
	assert.Equal(t, 10, created.Limit)

	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/set", `{"value":{"text":"h"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/set", `{"value":{"text":"hi"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ActionResponse](t, w)
	assert.True(t, resp.Applied)
	assert.JSONEq(t, `{"text":"h"}`, string(resp.Session.Present))
	assert.True(t, resp.Session.CanRedo)

	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/redo", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"text":"hi"}`, string(decode[ActionResponse](t, w).Session.Present))

	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/actions", `{"action":"reset","value":"fresh"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[ActionResponse](t, w)
	assert.Empty(t, resp.Session.Past)
	assert.Equal(t, `"fresh"`, string(resp.Session.Present))

	w = doRequest(t, router, http.MethodPost, "/v1/timeline/sessions/doc/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ActionResponse](t, w).Applied)

	w = doRequest(t, router, http.MethodGet, "/v1/timeline/sessions/doc/journal?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	j := decode[JournalResponse](t, w)
	require.Len(t, j.Entries, 2)
	assert.False(t, j.Entries[0].Applied)

	w = doRequest(t, router, http.MethodGet, "/v1/timeline/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[SessionListResponse](t, w).Count)

	w = doRequest(t, router, http.MethodDelete, "/v1/timeline/sessions/doc", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/timeline/sessions/doc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorResponse](t, w).Code)
}

func TestHandlers_Errors(t *testing.T) {
	svc := NewService(ServiceConfig{MaxValueBytes: 64}, nil, nil)
	router := setupTestRouter(svc)
	w := doRequest(t, router, http.MethodPost, "/v1/timeline/sessions", `{"id":"s","initial":0}`)
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/v1/timeline/sessions", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing initial", http.MethodPost, "/v1/timeline/sessions", `{"id":"x"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad session id", http.MethodPost, "/v1/timeline/sessions", `{"id":"a b","initial":1}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"negative limit", http.MethodPost, "/v1/timeline/sessions", `{"initial":1,"limit":-1}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"duplicate", http.MethodPost, "/v1/timeline/sessions", `{"id":"s","initial":1}`, http.StatusConflict, "SESSION_EXISTS"},
		{"unknown action", http.MethodPost, "/v1/timeline/sessions/s/actions", `{"action":"jump"}`, http.StatusBadRequest, "UNKNOWN_ACTION"},
		{"set without value", http.MethodPost, "/v1/timeline/sessions/s/actions", `{"action":"set"}`, http.StatusBadRequest, "INVALID_VALUE"},
		{"value too large", http.MethodPost, "/v1/timeline/sessions/s/set", `{"value":"` + strings.Repeat("x", 100) + `"}`, http.StatusRequestEntityTooLarge, "VALUE_TOO_LARGE"},
		{"body too large", http.MethodPost, "/v1/timeline/sessions/s/set", `{"value":"` + strings.Repeat("x", 8192) + `"}`, http.StatusRequestEntityTooLarge, "VALUE_TOO_LARGE"},
		{"unknown session", http.MethodPost, "/v1/timeline/sessions/nope/undo", "", http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"invalid session id", http.MethodGet, "/v1/timeline/sessions/a.b", "", http.StatusBadRequest, "INVALID_SESSION_ID"},
		{"bad journal limit", http.MethodGet, "/v1/timeline/sessions/s/journal?limit=x", "", http.StatusBadRequest, "INVALID_PARAMETER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestHandlers_RequestIDIsEchoed(t *testing.T) {
	router := setupTestRouter(NewService(DefaultServiceConfig(), nil, nil))

	req, err := http.NewRequest(http.MethodGet, "/v1/timeline/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestHandlers_HandleExportSession(t *testing.T) {
	ctx := context.Background()
	svc := NewService(DefaultServiceConfig(), nil, nil)
	router := setupTestRouter(svc)

	_, err := svc.CreateSession(ctx, "doc", json.RawMessage(`{"n":1}`), 3)
	require.NoError(t, err)
	_, err = svc.Set(ctx, "doc", json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	_, err = svc.Undo(ctx, "doc")
	require.NoError(t, err)

	w := doRequest(t, router, http.MethodGet, "/v1/timeline/sessions/doc/export", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="doc.json"`)
	assert.Contains(t, w.Body.String(), "\n  \"id\": \"doc\"")

	rec := decode[storage.Record](t, w)
	assert.Equal(t, "doc", rec.ID)
	assert.Equal(t, `{"n":1}`, string(rec.Present))
	require.Len(t, rec.Future, 1)
	assert.Equal(t, `{"n":2}`, string(rec.Future[0]))
	assert.Equal(t, 3, rec.Limit)
	assert.Equal(t, uint64(2), rec.Version)

	w = doRequest(t, router, http.MethodGet, "/v1/timeline/sessions/ghost/export", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_TraceIDHeader(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	RegisterRoutes(router.Group("/v1"), NewHandlers(NewService(DefaultServiceConfig(), nil, nil)))

	w := doRequest(t, router, http.MethodGet, "/v1/timeline/sessions/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, w.Header().Get("X-Trace-ID"), 32)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// Without a span there is no trace header.
	w = doRequest(t, setupTestRouter(NewService(DefaultServiceConfig(), nil, nil)), http.MethodGet, "/v1/timeline/sessions/ghost", "")
	assert.Empty(t, w.Header().Get("X-Trace-ID"))
}
