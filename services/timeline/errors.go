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

	"github.com/AleutianAI/timeline/pkg/history"
)

// Sentinel errors for the timeline service.
var (
	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrSessionNotFound indicates no session exists with the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a create request reused a live session id.
	ErrSessionExists = errors.New("session already exists")

	// ErrInvalidSessionID indicates a malformed session id.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidValue indicates a value that is not a single JSON document.
	ErrInvalidValue = errors.New("value must be valid JSON")

	// ErrValueTooLarge indicates a value above ServiceConfig.MaxValueBytes.
	ErrValueTooLarge = errors.New("value exceeds size limit")

	// ErrInvalidLimit indicates a negative history limit.
	ErrInvalidLimit = errors.New("history limit must not be negative")

	// ErrTooManySessions indicates ServiceConfig.MaxSessions was reached.
	ErrTooManySessions = errors.New("session limit reached")

	// ErrUnknownAction indicates an action name other than set, undo, redo
	// or reset. It is the same value as history.ErrUnknownAction.
	ErrUnknownAction = history.ErrUnknownAction

	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = errors.New("service closed")
)
