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
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// watchWriteTimeout bounds a single websocket write.
	watchWriteTimeout = 10 * time.Second

	// watchPongWait is how long a silent client stays connected.
	watchPongWait = 60 * time.Second

	// watchPingPeriod must be shorter than watchPongWait.
	watchPingPeriod = watchPongWait * 9 / 10
)

// WatchEvent is one message on the watch websocket.
//
// Type is "snapshot" for state pushed after every applied action, or
// "result" for the reply to an action the client sent on the socket.
type WatchEvent struct {
	Type    string           `json:"type"`
	Session *SessionSnapshot `json:"session,omitempty"`
	Applied *bool            `json:"applied,omitempty"`
	Error   string           `json:"error,omitempty"`
	Code    string           `json:"code,omitempty"`
}

// HandleWatch handles GET /v1/timeline/sessions/:id/watch.
//
// Description:
//
//	Upgrades to a websocket and streams a "snapshot" event for the current
//	state and then for every applied action, whichever client caused it.
//	The client may send ActionRequest messages on the same socket; each is
//	dispatched and answered with a "result" event. The stream ends when
//	the client disconnects or the session is deleted.
//
// Response:
//
//	101 Switching Protocols
//	404 Not Found: Unknown session (before upgrade)
func (h *Handlers) HandleWatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWatch")

	id := c.Param("id")
	snapshots, cancel, err := h.svc.Subscribe(id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	logger.Info("Watch client connected", "session_id", id)

	ws.SetReadLimit(int64(h.svc.Config().MaxValueBytes)*2 + requestOverhead)
	_ = ws.SetReadDeadline(time.Now().Add(watchPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	results := make(chan WatchEvent, watchBuffer)
	readerDone := make(chan struct{})
	go h.readWatchActions(c, ws, id, results, readerDone, logger)

	ticker := time.NewTicker(watchPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				_ = ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				logger.Info("Watch stream closed by server", "session_id", id)
				return
			}
			if err := writeWatchEvent(ws, WatchEvent{Type: "snapshot", Session: &snap}); err != nil {
				logger.Warn("Failed to write snapshot", "error", err)
				return
			}
		case ev := <-results:
			if err := writeWatchEvent(ws, ev); err != nil {
				logger.Warn("Failed to write result", "error", err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			logger.Info("Watch client disconnected", "session_id", id)
			return
		}
	}
}

// readWatchActions dispatches actions received on ws until it fails.
// Only the caller of HandleWatch writes to ws.
func (h *Handlers) readWatchActions(c *gin.Context, ws *websocket.Conn, id string, results chan<- WatchEvent, done chan<- struct{}, logger *slog.Logger) {
	defer close(done)
	for {
		var req ActionRequest
		if err := ws.ReadJSON(&req); err != nil {
			return
		}

		ev := WatchEvent{Type: "result"}
		if err := req.Validate(); err != nil {
			ev.Error, ev.Code = err.Error(), "VALIDATION_FAILED"
		} else if action, err := ParseAction(req.Action, req.Value); err != nil {
			_, ev.Code = errorStatus(err)
			ev.Error = err.Error()
		} else if resp, err := h.svc.Dispatch(c.Request.Context(), id, action); err != nil {
			_, ev.Code = errorStatus(err)
			ev.Error = err.Error()
		} else {
			applied := resp.Applied
			ev.Applied = &applied
		}
		if ev.Error != "" {
			logger.Warn("Watch action rejected", "session_id", id, "error", ev.Error)
		}

		select {
		case results <- ev:
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeWatchEvent(ws *websocket.Conn, ev WatchEvent) error {
	_ = ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
	return ws.WriteJSON(ev)
}
