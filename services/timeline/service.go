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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/timeline/pkg/history"
	"github.com/AleutianAI/timeline/services/timeline/journal"
	"github.com/AleutianAI/timeline/services/timeline/storage"
	"github.com/AleutianAI/timeline/services/timeline/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// watchBuffer is the channel capacity of each subscription. A slow watcher
// only ever misses intermediate snapshots, never the latest one.
const watchBuffer = 16

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// MaxHistory is the step limit for sessions created without one.
	// 0 means unbounded.
	MaxHistory int

	// JournalSize is the number of actions remembered per session.
	JournalSize int

	// MaxSessions caps live sessions. 0 means unlimited.
	MaxSessions int

	// MaxValueBytes caps the compacted size of a single value.
	MaxValueBytes int
}

// DefaultServiceConfig returns the defaults used by `timeline serve`.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxHistory:    0,
		JournalSize:   DefaultJournalSize,
		MaxSessions:   DefaultMaxSessions,
		MaxValueBytes: DefaultMaxValueBytes,
	}
}

func (c ServiceConfig) normalized() ServiceConfig {
	if c.MaxHistory < 0 {
		c.MaxHistory = 0
	}
	if c.JournalSize <= 0 {
		c.JournalSize = DefaultJournalSize
	}
	if c.MaxSessions < 0 {
		c.MaxSessions = 0
	}
	if c.MaxValueBytes <= 0 {
		c.MaxValueBytes = DefaultMaxValueBytes
	}
	return c
}

// Service hosts timeline sessions.
//
// # Description
//
// Every session holds one history.State over JSON values. All operations
// on a session are serialized by its mutex; operations on different
// sessions run in parallel. When a Repository is configured, applied
// actions are persisted before they become visible, so a failed write
// leaves the session unchanged.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	config ServiceConfig
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	mu        sync.Mutex
	id        string
	state     history.State[json.RawMessage]
	journal   *journal.Journal
	version   uint64
	createdAt time.Time
	updatedAt time.Time
	watchers  map[uint64]chan SessionSnapshot
	nextWatch uint64
	deleted   bool
}

// NewService creates a Service.
//
// # Inputs
//
//   - cfg: Limits. Zero fields fall back to DefaultServiceConfig values.
//   - repo: Optional. Nil keeps sessions in memory only.
//   - logger: Optional. Nil uses slog.Default().
func NewService(cfg ServiceConfig, repo storage.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:   cfg.normalized(),
		repo:     repo,
		logger:   logger.With(slog.String("component", "timeline_service")),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// cloneRaw copies a JSON value so callers never share bytes with a session.
func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

func stateOptions(limit int) []history.Option[json.RawMessage] {
	return []history.Option[json.RawMessage]{
		history.WithLimit[json.RawMessage](limit),
		history.WithClone(cloneRaw),
	}
}

// normalizeValue validates v and returns its compact encoding.
func (s *Service) normalizeValue(v json.RawMessage) (json.RawMessage, error) {
	if len(v) == 0 {
		return nil, ErrInvalidValue
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if buf.Len() > s.config.MaxValueBytes {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrValueTooLarge, buf.Len(), s.config.MaxValueBytes)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// ParseAction builds an action from its name and optional value.
//
// # Outputs
//
//   - history.Action: The action. Value is only carried for set and reset.
//   - error: ErrUnknownAction for an unrecognized name.
func ParseAction(name string, value json.RawMessage) (history.Action[json.RawMessage], error) {
	kind, err := history.ParseActionKind(name)
	if err != nil {
		return history.Action[json.RawMessage]{}, err
	}
	switch kind {
	case history.ActionSet:
		return history.SetAction(value), nil
	case history.ActionReset:
		return history.ResetAction(value), nil
	case history.ActionUndo:
		return history.UndoAction[json.RawMessage](), nil
	default:
		return history.RedoAction[json.RawMessage](), nil
	}
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return ctx.Err()
}

// lookup returns the live session for id.
func (s *Service) lookup(id string) (*session, error) {
	if !ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateSession starts a new session whose present is initial.
//
// # Inputs
//
//   - ctx: Context for tracing and persistence.
//   - id: Optional. Empty generates a UUID.
//   - initial: The first present value. Must be valid JSON.
//   - limit: Step bound. 0 uses ServiceConfig.MaxHistory.
//
// # Outputs
//
//   - SessionSnapshot: The new session at version 0.
//   - error: ErrInvalidSessionID, ErrInvalidValue, ErrValueTooLarge,
//     ErrInvalidLimit, ErrSessionExists, ErrTooManySessions, or a wrapped
//     repository error.
func (s *Service) CreateSession(ctx context.Context, id string, initial json.RawMessage, limit int) (snap SessionSnapshot, err error) {
	if err := checkContext(ctx); err != nil {
		return SessionSnapshot{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	ctx, span := startSessionSpan(ctx, "CreateSession", id)
	defer func() { endSpan(span, err) }()

	if !ValidSessionID(id) {
		return SessionSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if limit < 0 {
		return SessionSnapshot{}, ErrInvalidLimit
	}
	if limit == 0 {
		limit = s.config.MaxHistory
	}
	value, err := s.normalizeValue(initial)
	if err != nil {
		return SessionSnapshot{}, err
	}

	now := s.now().UTC()
	sess := &session{
		id:        id,
		state:     history.New(value, stateOptions(limit)...),
		journal:   journal.New(s.config.JournalSize),
		createdAt: now,
		updatedAt: now,
		watchers:  make(map[uint64]chan SessionSnapshot),
	}

	// The new session enters the map locked, which reserves its id and its
	// slot against MaxSessions while the record is written outside s.mu.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return SessionSnapshot{}, ErrServiceClosed
	}
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		s.mu.Unlock()
		return SessionSnapshot{}, fmt.Errorf("%w: %d", ErrTooManySessions, s.config.MaxSessions)
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(ctx, sess.record(sess.state, sess.version, sess.updatedAt)); err != nil {
			RecordPersistError("save")
			sess.deleted = true
			s.release(sess)
			return SessionSnapshot{}, fmt.Errorf("persist session %s: %w", id, err)
		}
	}
	activeSessions.Inc()

	span.SetAttributes(attribute.Int("limit", limit))
	s.logger.Info("session created",
		slog.String("session_id", id),
		slog.Int("limit", limit))

	return sess.snapshot(), nil
}

// DeleteSession removes a session from memory and from the repository.
// Open subscriptions are closed.
func (s *Service) DeleteSession(ctx context.Context, id string) (err error) {
	if err := checkContext(ctx); err != nil {
		return err
	}
	ctx, span := startSessionSpan(ctx, "DeleteSession", id)
	defer func() { endSpan(span, err) }()

	if !ValidSessionID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	// The id stays in the map until the record is gone, so a concurrent
	// CreateSession with the same id fails instead of being wiped.
	sess.mu.Lock()
	if sess.deleted {
		sess.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			sess.mu.Unlock()
			RecordPersistError("delete")
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	sess.deleted = true
	sess.closeWatchers()
	sess.mu.Unlock()

	s.release(sess)
	activeSessions.Dec()

	s.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}

// release drops sess from the session map if it is still the entry for
// its id.
func (s *Service) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.id]; ok && cur == sess {
		delete(s.sessions, sess.id)
	}
}

// ListSessions returns a summary of every live session ordered by id.
func (s *Service) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(live))
	for _, sess := range live {
		sess.mu.Lock()
		if !sess.deleted {
			out = append(out, sess.summary())
		}
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// Closed reports whether Close has been called.
func (s *Service) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Snapshot returns the current state of a session.
func (s *Service) Snapshot(ctx context.Context, id string) (SessionSnapshot, error) {
	if err := checkContext(ctx); err != nil {
		return SessionSnapshot{}, err
	}
	sess, err := s.lookup(id)
	if err != nil {
		return SessionSnapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.snapshot(), nil
}

// Record returns the persistable form of a session.
func (s *Service) Record(ctx context.Context, id string) (storage.Record, error) {
	if err := checkContext(ctx); err != nil {
		return storage.Record{}, err
	}
	sess, err := s.lookup(id)
	if err != nil {
		return storage.Record{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return storage.Record{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.record(sess.state, sess.version, sess.updatedAt), nil
}

// =============================================================================
// Actions
// =============================================================================

// Dispatch applies action to a session.
//
// # Description
//
// The action is reduced with history.Step. A boundary undo or redo is not
// an error: the response reports Applied=false and the version is
// unchanged. Every dispatched action, applied or not, is journaled.
//
// # Outputs
//
//   - ActionResponse: Whether the action applied and the resulting state.
//   - error: ErrSessionNotFound, ErrUnknownAction, ErrInvalidValue,
//     ErrValueTooLarge, or a wrapped repository error. On error the
//     session is unchanged.
func (s *Service) Dispatch(ctx context.Context, id string, action history.Action[json.RawMessage]) (resp ActionResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return ActionResponse{}, err
	}
	start := time.Now()
	ctx, span := startSessionSpan(ctx, "Dispatch", id)
	defer func() { endSpan(span, err) }()

	name, err := action.Kind.MarshalText()
	if err != nil {
		return ActionResponse{}, err
	}
	span.SetAttributes(attribute.String("action", string(name)))

	if action.Kind == history.ActionSet || action.Kind == history.ActionReset {
		value, err := s.normalizeValue(action.Value)
		if err != nil {
			return ActionResponse{}, err
		}
		action.Value = value
	}

	sess, err := s.lookup(id)
	if err != nil {
		return ActionResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return ActionResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	next, applied := history.Step(sess.state, action)
	if applied {
		version := sess.version + 1
		updatedAt := s.now().UTC()
		if s.repo != nil {
			if err := s.repo.Save(ctx, sess.record(next, version, updatedAt)); err != nil {
				RecordPersistError("save")
				return ActionResponse{}, fmt.Errorf("persist session %s: %w", id, err)
			}
		}
		sess.state = next
		sess.version = version
		sess.updatedAt = updatedAt
		RecordHistoryDepth(next.UndoDepth() + next.RedoDepth())
	}
	sess.journal.Record(action.Kind, applied, sess.state.UndoDepth(), sess.state.RedoDepth())

	snap := sess.snapshot()
	if applied {
		sess.publish(snap)
	}

	RecordAction(string(name), applied, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Bool("applied", applied),
		attribute.Int64("version", int64(snap.Version)),
	)
	telemetry.LoggerWithTrace(ctx, s.logger).Debug("action dispatched",
		slog.String("session_id", id),
		slog.String("action", string(name)),
		slog.Bool("applied", applied),
		slog.Uint64("version", snap.Version))

	return ActionResponse{Applied: applied, Session: snap}, nil
}

// Set records value as the session's present.
func (s *Service) Set(ctx context.Context, id string, value json.RawMessage) (ActionResponse, error) {
	return s.Dispatch(ctx, id, history.SetAction(value))
}

// Undo steps the session back. Undo with empty past is not applied.
func (s *Service) Undo(ctx context.Context, id string) (ActionResponse, error) {
	return s.Dispatch(ctx, id, history.UndoAction[json.RawMessage]())
}

// Redo steps the session forward. Redo with empty future is not applied.
func (s *Service) Redo(ctx context.Context, id string) (ActionResponse, error) {
	return s.Dispatch(ctx, id, history.RedoAction[json.RawMessage]())
}

// Reset discards the session's history and makes value the present.
func (s *Service) Reset(ctx context.Context, id string, value json.RawMessage) (ActionResponse, error) {
	return s.Dispatch(ctx, id, history.ResetAction(value))
}

// Journal returns up to limit recent actions, newest first. limit <= 0
// returns everything retained.
func (s *Service) Journal(ctx context.Context, id string, limit int) (JournalResponse, error) {
	if err := checkContext(ctx); err != nil {
		return JournalResponse{}, err
	}
	sess, err := s.lookup(id)
	if err != nil {
		return JournalResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if limit <= 0 {
		limit = sess.journal.Len()
	}
	return JournalResponse{
		SessionID: id,
		Entries:   sess.journal.Last(limit),
		Dropped:   sess.journal.Dropped(),
	}, nil
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe streams snapshots of a session.
//
// # Description
//
// The current snapshot is delivered immediately, followed by one snapshot
// per applied action. When the watcher falls behind, older undelivered
// snapshots are replaced by newer ones. The channel is closed by cancel,
// by DeleteSession, or by Close.
//
// # Outputs
//
//   - <-chan SessionSnapshot: The stream.
//   - func(): Cancels the subscription. Safe to call more than once.
//   - error: ErrSessionNotFound or ErrInvalidSessionID.
func (s *Service) Subscribe(id string) (<-chan SessionSnapshot, func(), error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.deleted {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ch := make(chan SessionSnapshot, watchBuffer)
	ch <- sess.snapshot()
	watchID := sess.nextWatch
	sess.nextWatch++
	sess.watchers[watchID] = ch
	activeWatchers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			if w, ok := sess.watchers[watchID]; ok {
				delete(sess.watchers, watchID)
				close(w)
				activeWatchers.Dec()
			}
		})
	}
	return ch, cancel, nil
}

// publish delivers snap to every watcher. Caller holds sess.mu.
func (sess *session) publish(snap SessionSnapshot) {
	for _, ch := range sess.watchers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot to make room.
		select {
		case <-ch:
			watchDropped.Inc()
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// closeWatchers closes every subscription. Caller holds sess.mu.
func (sess *session) closeWatchers() {
	for id, ch := range sess.watchers {
		delete(sess.watchers, id)
		close(ch)
		activeWatchers.Dec()
	}
}

// =============================================================================
// Persistence
// =============================================================================

// Restore loads every persisted session into memory. Sessions that are
// already live are left untouched. Records beyond MaxSessions stay in the
// repository but are not loaded.
//
// # Outputs
//
//   - int: Number of sessions restored.
//   - error: Wrapped repository error.
func (s *Service) Restore(ctx context.Context) (n int, err error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	if s.repo == nil {
		return 0, nil
	}
	ctx, span := tracer.Start(ctx, "timeline.Restore")
	defer func() { endSpan(span, err) }()

	records, err := s.repo.List(ctx)
	if err != nil {
		RecordPersistError("restore")
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	skipped := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if _, exists := s.sessions[rec.ID]; exists {
			continue
		}
		if !ValidSessionID(rec.ID) {
			s.logger.Warn("skipping persisted session with invalid id", slog.String("session_id", rec.ID))
			continue
		}
		if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
			skipped++
			continue
		}
		s.sessions[rec.ID] = sessionFromRecord(rec, s.config.JournalSize)
		activeSessions.Inc()
		n++
	}
	if skipped > 0 {
		s.logger.Warn("session limit reached, persisted sessions not restored",
			slog.Int("max_sessions", s.config.MaxSessions),
			slog.Int("skipped", skipped))
	}

	span.SetAttributes(attribute.Int("restored", n), attribute.Int("skipped", skipped))
	s.logger.Info("sessions restored", slog.Int("count", n))
	return n, nil
}

// Close shuts the service down and closes all subscriptions. Later calls
// fail with ErrServiceClosed.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.mu.Lock()
		sess.closeWatchers()
		sess.mu.Unlock()
	}
}

func sessionFromRecord(rec storage.Record, journalSize int) *session {
	snap := history.Snapshot[json.RawMessage]{
		Past:    rec.Past,
		Present: rec.Present,
		Future:  rec.Future,
	}
	return &session{
		id:        rec.ID,
		state:     history.FromSnapshot(snap, stateOptions(rec.Limit)...),
		journal:   journal.New(journalSize),
		version:   rec.Version,
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
		watchers:  make(map[uint64]chan SessionSnapshot),
	}
}

func (sess *session) record(state history.State[json.RawMessage], version uint64, updatedAt time.Time) storage.Record {
	return storage.Record{
		ID:        sess.id,
		Past:      state.Past(),
		Present:   state.Present(),
		Future:    state.Future(),
		Limit:     state.Limit(),
		Version:   version,
		CreatedAt: sess.createdAt,
		UpdatedAt: updatedAt,
	}
}

func (sess *session) snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID: sess.id,
		Past:      sess.state.Past(),
		Present:   sess.state.Present(),
		Future:    sess.state.Future(),
		CanUndo:   sess.state.CanUndo(),
		CanRedo:   sess.state.CanRedo(),
		Limit:     sess.state.Limit(),
		Version:   sess.version,
		UpdatedAt: sess.updatedAt,
	}
}

func (sess *session) summary() SessionSummary {
	return SessionSummary{
		SessionID: sess.id,
		UndoDepth: sess.state.UndoDepth(),
		RedoDepth: sess.state.RedoDepth(),
		Limit:     sess.state.Limit(),
		Version:   sess.version,
		CreatedAt: sess.createdAt,
		UpdatedAt: sess.updatedAt,
	}
}
