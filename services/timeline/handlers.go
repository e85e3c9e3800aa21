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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/timeline/services/timeline/export"
	"github.com/AleutianAI/timeline/services/timeline/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServiceVersion is the timeline service version.
const ServiceVersion = "0.1.0"

// requestOverhead is the room left in a request body beyond the value
// itself for the surrounding JSON object.
const requestOverhead = 4096

// Handlers contains the HTTP handlers for the timeline service.
type Handlers struct {
	svc      *Service
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		c.Header("X-Trace-ID", traceID)
	}
	return requestID
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, ErrSessionExists):
		return http.StatusConflict, "SESSION_EXISTS"
	case errors.Is(err, ErrInvalidSessionID):
		return http.StatusBadRequest, "INVALID_SESSION_ID"
	case errors.Is(err, ErrInvalidValue):
		return http.StatusBadRequest, "INVALID_VALUE"
	case errors.Is(err, ErrValueTooLarge):
		return http.StatusRequestEntityTooLarge, "VALUE_TOO_LARGE"
	case errors.Is(err, ErrInvalidLimit):
		return http.StatusBadRequest, "INVALID_LIMIT"
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests, "TOO_MANY_SESSIONS"
	case errors.Is(err, ErrUnknownAction):
		return http.StatusBadRequest, "UNKNOWN_ACTION"
	case errors.Is(err, ErrServiceClosed):
		return http.StatusServiceUnavailable, "SERVICE_CLOSED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeError logs err and writes the mapped ErrorResponse.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

// bindJSON decodes and validates a request body.
func (h *Handlers) bindJSON(c *gin.Context, logger *slog.Logger, req interface{ Validate() error }) bool {
	limit := int64(h.svc.Config().MaxValueBytes)*2 + requestOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Request body too large", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "request body too large",
				Code:  "VALUE_TOO_LARGE",
			})
			return false
		}
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_FAILED",
		})
		return false
	}
	return true
}

// HandleCreateSession handles POST /v1/timeline/sessions.
//
// Request Body:
//
//	CreateSessionRequest
//
// Response:
//
//	201 Created: SessionSnapshot
//	400 Bad Request: Invalid body, id, value, or limit
//	409 Conflict: Session id already in use
//	429 Too Many Requests: Session limit reached
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateSession")

	var req CreateSessionRequest
	if !h.bindJSON(c, logger, &req) {
		return
	}

	snap, err := h.svc.CreateSession(c.Request.Context(), req.ID, req.Initial, req.Limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Session created", "session_id", snap.SessionID, "limit", snap.Limit)
	c.Header("Location", c.FullPath()+"/"+snap.SessionID)
	c.JSON(http.StatusCreated, snap)
}

// HandleListSessions handles GET /v1/timeline/sessions.
//
// Response:
//
//	200 OK: SessionListResponse (may be empty)
func (h *Handlers) HandleListSessions(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListSessions")

	sessions, err := h.svc.ListSessions(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// HandleGetSession handles GET /v1/timeline/sessions/:id.
//
// Response:
//
//	200 OK: SessionSnapshot
//	404 Not Found: Unknown session
func (h *Handlers) HandleGetSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetSession")

	snap, err := h.svc.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// HandleDeleteSession handles DELETE /v1/timeline/sessions/:id.
//
// Response:
//
//	204 No Content
//	404 Not Found: Unknown session
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeleteSession")

	id := c.Param("id")
	if err := h.svc.DeleteSession(c.Request.Context(), id); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Session deleted", "session_id", id)
	c.Status(http.StatusNoContent)
}

// HandleExportSession handles GET /v1/timeline/sessions/:id/export.
//
// The body is the session record in the same indented form `timeline
// export` writes, served as an attachment named <id>.json.
//
// Response:
//
//	200 OK: Session record
//	404 Not Found: Unknown session
func (h *Handlers) HandleExportSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExportSession")

	rec, err := h.svc.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+rec.ID+`.json"`)
	c.Status(http.StatusOK)
	if err := export.Encode(c.Writer, rec); err != nil {
		logger.Error("Failed to write export", "session_id", rec.ID, "error", err)
	}
}

// HandleSet handles POST /v1/timeline/sessions/:id/set.
//
// Request Body:
//
//	ValueRequest
//
// Response:
//
//	200 OK: ActionResponse (Applied is always true)
//	400 Bad Request: Invalid value
//	404 Not Found: Unknown session
func (h *Handlers) HandleSet(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSet")

	var req ValueRequest
	if !h.bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Set(c.Request.Context(), c.Param("id"), req.Value)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleUndo handles POST /v1/timeline/sessions/:id/undo.
//
// Response:
//
//	200 OK: ActionResponse (Applied is false when there was nothing to undo)
//	404 Not Found: Unknown session
func (h *Handlers) HandleUndo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUndo")

	resp, err := h.svc.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRedo handles POST /v1/timeline/sessions/:id/redo.
//
// Response:
//
//	200 OK: ActionResponse (Applied is false when there was nothing to redo)
//	404 Not Found: Unknown session
func (h *Handlers) HandleRedo(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRedo")

	resp, err := h.svc.Redo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleReset handles POST /v1/timeline/sessions/:id/reset.
//
// Request Body:
//
//	ValueRequest
//
// Response:
//
//	200 OK: ActionResponse
//	400 Bad Request: Invalid value
//	404 Not Found: Unknown session
func (h *Handlers) HandleReset(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReset")

	var req ValueRequest
	if !h.bindJSON(c, logger, &req) {
		return
	}

	resp, err := h.svc.Reset(c.Request.Context(), c.Param("id"), req.Value)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleAction handles POST /v1/timeline/sessions/:id/actions.
//
// Description:
//
//	Dispatches a tagged action by name. This is the single entry point a
//	client uses when it forwards actions from its own reducer.
//
// Request Body:
//
//	ActionRequest
//
// Response:
//
//	200 OK: ActionResponse
//	400 Bad Request: Unknown action or invalid value
//	404 Not Found: Unknown session
func (h *Handlers) HandleAction(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAction")

	var req ActionRequest
	if !h.bindJSON(c, logger, &req) {
		return
	}

	action, err := ParseAction(req.Action, req.Value)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	resp, err := h.svc.Dispatch(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleJournal handles GET /v1/timeline/sessions/:id/journal.
//
// Query Parameters:
//
//	limit: Maximum entries, newest first (optional, default all retained)
//
// Response:
//
//	200 OK: JournalResponse
//	400 Bad Request: Malformed limit
//	404 Not Found: Unknown session
func (h *Handlers) HandleJournal(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleJournal")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			logger.Warn("Invalid limit parameter", "limit", raw)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a non-negative integer",
				Code:  "INVALID_PARAMETER",
			})
			return
		}
		limit = n
	}

	resp, err := h.svc.Journal(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/timeline/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/timeline/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false) after shutdown began
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{
		Ready:    !h.svc.Closed(),
		Sessions: h.svc.SessionCount(),
	}
	if !resp.Ready {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
