// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package timeline hosts many named undo/redo histories ("sessions") behind
// an HTTP API.
//
// Each session owns one history.State over JSON values. The Service
// serializes every call on a session, so the pure reducer in pkg/history
// never sees concurrent use. Applied actions bump the session version,
// are written to the Repository when one is configured, and are pushed to
// websocket watchers. Boundary undo and redo are accepted and reported as
// not applied.
//
// # Endpoints
//
//	POST   /v1/timeline/sessions              create a session
//	GET    /v1/timeline/sessions              list sessions
//	GET    /v1/timeline/sessions/:id          current snapshot
//	DELETE /v1/timeline/sessions/:id          delete a session
//	POST   /v1/timeline/sessions/:id/set      record a new present
//	POST   /v1/timeline/sessions/:id/undo     step back
//	POST   /v1/timeline/sessions/:id/redo     step forward
//	POST   /v1/timeline/sessions/:id/reset    clear history
//	POST   /v1/timeline/sessions/:id/actions  dispatch a tagged action
//	GET    /v1/timeline/sessions/:id/journal  recent actions
//	GET    /v1/timeline/sessions/:id/watch    websocket snapshot stream
//	GET    /v1/timeline/health
//	GET    /v1/timeline/ready
package timeline
