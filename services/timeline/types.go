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
	"encoding/json"
	"regexp"
	"time"

	"github.com/AleutianAI/timeline/services/timeline/journal"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// DefaultJournalSize is the number of actions remembered per session.
	DefaultJournalSize = journal.DefaultCapacity

	// DefaultMaxSessions caps live sessions per service.
	DefaultMaxSessions = 1024

	// DefaultMaxValueBytes caps the encoded size of a single value.
	DefaultMaxValueBytes = 1 << 20

	// MaxRequestLimit is the largest per-session history limit a client may
	// request.
	MaxRequestLimit = 100000
)

// sessionIDPattern accepts client-chosen ids and generated UUIDs.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSessionID reports whether id may name a session.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("jsonvalue", validateJSONValue)
	_ = requestValidate.RegisterValidation("sessionid", validateSessionID)
}

// validateJSONValue accepts a json.RawMessage holding exactly one JSON
// document. "null" is a valid document.
func validateJSONValue(fl validator.FieldLevel) bool {
	raw := fl.Field().Bytes()
	return len(raw) > 0 && json.Valid(raw)
}

func validateSessionID(fl validator.FieldLevel) bool {
	return ValidSessionID(fl.Field().String())
}

// =============================================================================
// Requests
// =============================================================================

// CreateSessionRequest is the body of POST /v1/timeline/sessions.
//
// # Fields
//
//   - ID: Optional. Client-chosen id; a UUID is generated when empty.
//   - Initial: Required. The first present value.
//   - Limit: Optional. Maximum recorded steps; 0 uses the server default.
type CreateSessionRequest struct {
	ID      string          `json:"id,omitempty" validate:"omitempty,sessionid"`
	Initial json.RawMessage `json:"initial" validate:"jsonvalue"`
	Limit   int             `json:"limit,omitempty" validate:"gte=0,lte=100000"`
}

// Validate checks the request against its validate tags.
func (r *CreateSessionRequest) Validate() error {
	return requestValidate.Struct(r)
}

// ValueRequest is the body of the set and reset endpoints.
type ValueRequest struct {
	Value json.RawMessage `json:"value" validate:"jsonvalue"`
}

// Validate checks the request against its validate tags.
func (r *ValueRequest) Validate() error {
	return requestValidate.Struct(r)
}

// ActionRequest is the body of POST /v1/timeline/sessions/:id/actions.
//
// Value is required for set and reset and ignored for undo and redo.
type ActionRequest struct {
	Action string          `json:"action" validate:"required,max=16"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Validate checks the request against its validate tags.
func (r *ActionRequest) Validate() error {
	return requestValidate.Struct(r)
}

// =============================================================================
// Responses
// =============================================================================

// SessionSnapshot is the observable state of one session.
//
// Future is ordered nearest-undone first. Version increases by one for
// every applied action and never for a no-op.
type SessionSnapshot struct {
	SessionID string            `json:"session_id"`
	Past      []json.RawMessage `json:"past"`
	Present   json.RawMessage   `json:"present"`
	Future    []json.RawMessage `json:"future"`
	CanUndo   bool              `json:"can_undo"`
	CanRedo   bool              `json:"can_redo"`
	Limit     int               `json:"limit"`
	Version   uint64            `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ActionResponse is returned by every mutating endpoint.
type ActionResponse struct {
	// Applied is false when the action was a boundary no-op.
	Applied bool            `json:"applied"`
	Session SessionSnapshot `json:"session"`
}

// SessionSummary describes a session without its values.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	UndoDepth int       `json:"undo_depth"`
	RedoDepth int       `json:"redo_depth"`
	Limit     int       `json:"limit"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionListResponse is returned by GET /v1/timeline/sessions.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// JournalResponse is returned by GET /v1/timeline/sessions/:id/journal.
type JournalResponse struct {
	SessionID string          `json:"session_id"`
	Entries   []journal.Entry `json:"entries"`
	Dropped   uint64          `json:"dropped"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Ready    bool `json:"ready"`
	Sessions int  `json:"sessions"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`
}
