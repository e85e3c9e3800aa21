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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all timeline routes with the router.
//
// Description:
//
//	Registers all /v1/timeline/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST   /v1/timeline/sessions - Create a session
//	GET    /v1/timeline/sessions - List sessions
//	GET    /v1/timeline/sessions/:id - Current snapshot
//	GET    /v1/timeline/sessions/:id/export - Full session record
//	DELETE /v1/timeline/sessions/:id - Delete a session
//	POST   /v1/timeline/sessions/:id/set - Record a new present
//	POST   /v1/timeline/sessions/:id/undo - Undo
//	POST   /v1/timeline/sessions/:id/redo - Redo
//	POST   /v1/timeline/sessions/:id/reset - Reset
//	POST   /v1/timeline/sessions/:id/actions - Dispatch a tagged action
//	GET    /v1/timeline/sessions/:id/journal - Recent actions
//	GET    /v1/timeline/sessions/:id/watch - Websocket snapshot stream
//	GET    /v1/timeline/health - Liveness
//	GET    /v1/timeline/ready - Readiness
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	tl := rg.Group("/timeline")
	{
		tl.GET("/health", handlers.HandleHealth)
		tl.GET("/ready", handlers.HandleReady)

		sessions := tl.Group("/sessions")
		{
			sessions.POST("", handlers.HandleCreateSession)
			sessions.GET("", handlers.HandleListSessions)
			sessions.GET("/:id", handlers.HandleGetSession)
			sessions.DELETE("/:id", handlers.HandleDeleteSession)
			sessions.GET("/:id/export", handlers.HandleExportSession)
			sessions.POST("/:id/set", handlers.HandleSet)
			sessions.POST("/:id/undo", handlers.HandleUndo)
			sessions.POST("/:id/redo", handlers.HandleRedo)
			sessions.POST("/:id/reset", handlers.HandleReset)
			sessions.POST("/:id/actions", handlers.HandleAction)
			sessions.GET("/:id/journal", handlers.HandleJournal)
			sessions.GET("/:id/watch", handlers.HandleWatch)
		}
	}
}
