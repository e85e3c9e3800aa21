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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Timeline Sessions
// =============================================================================

var (
	// actionsTotal counts dispatched actions.
	// Labels: action (set, undo, redo, reset), applied (true, false)
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "actions_total",
		Help:      "Total actions dispatched to sessions",
	}, []string{"action", "applied"})

	// actionLatency measures time spent applying and persisting an action.
	// Labels: action
	actionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "action_duration_seconds",
		Help:      "Action dispatch latency in seconds, including persistence",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	}, []string{"action"})

	// activeSessions tracks live sessions.
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "active",
		Help:      "Number of live sessions",
	})

	// activeWatchers tracks open snapshot subscriptions.
	activeWatchers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "watchers",
		Help:      "Number of open snapshot subscriptions",
	})

	// watchDropped counts snapshots replaced before a slow watcher read them.
	watchDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "watch_dropped_total",
		Help:      "Snapshots superseded before delivery to a slow watcher",
	})

	// persistErrors counts repository failures.
	// Labels: op (save, delete, restore)
	persistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Subsystem: "storage",
		Name:      "errors_total",
		Help:      "Repository failures by operation",
	}, []string{"op"})

	// historyDepth tracks the recorded steps of sessions after each action.
	historyDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeline",
		Subsystem: "session",
		Name:      "history_depth",
		Help:      "Recorded steps (past plus future) after each applied action",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
)

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordAction records one dispatched action and its latency.
//
// Inputs:
//
//	action - The action name.
//	applied - Whether the action changed the session.
//	durationSec - Duration in seconds.
func RecordAction(action string, applied bool, durationSec float64) {
	label := "false"
	if applied {
		label = "true"
	}
	actionsTotal.WithLabelValues(action, label).Inc()
	actionLatency.WithLabelValues(action).Observe(durationSec)
}

// RecordHistoryDepth records past plus future after an applied action.
func RecordHistoryDepth(depth int) {
	historyDepth.Observe(float64(depth))
}

// RecordPersistError records a repository failure.
//
// Inputs:
//
//	op - "save", "delete", or "restore".
func RecordPersistError(op string) {
	persistErrors.WithLabelValues(op).Inc()
}
