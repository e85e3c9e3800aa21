// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists timeline sessions so a server restart does not
// lose undo history.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a session id.
	ErrNotFound = errors.New("session record not found")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrEmptyID is returned when a record or lookup has no session id.
	ErrEmptyID = errors.New("session id must not be empty")
)

// Record is the persisted form of one session.
//
// Future is ordered nearest-undone first, matching history.Snapshot.
type Record struct {
	ID        string            `json:"id"`
	Past      []json.RawMessage `json:"past"`
	Present   json.RawMessage   `json:"present"`
	Future    []json.RawMessage `json:"future"`
	Limit     int               `json:"limit"`
	Version   uint64            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Present = cloneRaw(r.Present)
	out.Past = cloneRawSlice(r.Past)
	out.Future = cloneRawSlice(r.Future)
	return out
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

func cloneRawSlice(vs []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		out[i] = cloneRaw(v)
	}
	return out
}

// Repository stores session records.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save creates or replaces the record with rec.ID.
	Save(ctx context.Context, rec Record) error

	// Load returns the record for id, or ErrNotFound.
	Load(ctx context.Context, id string) (Record, error)

	// Delete removes the record for id. Deleting a missing id returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns every record ordered by id.
	List(ctx context.Context) ([]Record, error)
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return ctx.Err()
}
