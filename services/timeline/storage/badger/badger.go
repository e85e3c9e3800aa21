// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger opens and manages the BadgerDB instance that holds
// timeline sessions between server restarts.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config describes where timeline sessions are stored and how the value
// log is compacted.
type Config struct {
	// Path is the session data directory. Unused with InMemory.
	Path string

	// InMemory keeps sessions in RAM only; they vanish when the server
	// exits.
	InMemory bool

	// SyncWrites waits for every session save to reach disk.
	SyncWrites bool

	// Logger receives store diagnostics. Nil silences them.
	Logger *slog.Logger

	// GCInterval spaces value log compaction passes. 0 turns them off.
	GCInterval time.Duration

	// GCDiscardRatio is the share of stale session versions a value log
	// file must hold before it is rewritten.
	GCDiscardRatio float64
}

// DefaultConfig returns the settings used by `timeline serve`.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for a throwaway store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// storeLog forwards BadgerDB diagnostics into the timeline's slog stream.
// Badger's info chatter is demoted to debug.
type storeLog struct {
	logger *slog.Logger
}

func newStoreLog(logger *slog.Logger) *storeLog {
	return &storeLog{logger: logger.With(slog.String("component", "session_store"))}
}

func (s *storeLog) emit(level slog.Level, format string, args []interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	s.logger.Log(context.Background(), level, msg)
}

func (s *storeLog) Errorf(format string, args ...interface{}) {
	s.emit(slog.LevelError, format, args)
}

func (s *storeLog) Warningf(format string, args ...interface{}) {
	s.emit(slog.LevelWarn, format, args)
}

func (s *storeLog) Infof(format string, args ...interface{}) {
	s.emit(slog.LevelDebug, format, args)
}

func (s *storeLog) Debugf(format string, args ...interface{}) {
	s.emit(slog.LevelDebug, format, args)
}

func open(cfg Config) (*badger.DB, error) {
	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, errors.New("session store path is required unless in memory")
	default:
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create session store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	// Sessions are overwritten whole on every action; older versions are
	// never read.
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(newStoreLog(cfg.Logger))
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return db, nil
}

// Collector compacts the value log on a fixed interval. Each session save
// leaves the previous record behind as garbage.
type Collector struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector returns a Collector that has not started yet.
func NewCollector(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*Collector, error) {
	switch {
	case db == nil:
		return nil, errors.New("collector needs a database")
	case interval <= 0:
		return nil, fmt.Errorf("collector interval must be positive, got %s", interval)
	case ratio <= 0 || ratio >= 1:
		return nil, fmt.Errorf("collector discard ratio must be in (0, 1), got %g", ratio)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		cancel:   func() {},
		done:     make(chan struct{}),
	}, nil
}

// Start launches the compaction loop once. Later calls do nothing.
func (c *Collector) Start() {
	c.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.loop(ctx)
	})
}

// Stop ends the loop and waits for it. It may be called repeatedly and
// without a prior Start.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.done) })
	c.cancel()
	<-c.done
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	// One file per pass; RunValueLogGC reports ErrNoRewrite when there is
	// nothing left worth rewriting.
	err := c.db.RunValueLogGC(c.ratio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
		return
	}
	c.logger.Warn("session store compaction failed", slog.String("error", err.Error()))
}

// DB is the session store: a BadgerDB handle that owns its Collector.
type DB struct {
	*badger.DB
	collector *Collector
	path      string
	inMemory  bool
}

// OpenDB opens the session store described by cfg. A persistent store
// with a GCInterval also gets a running Collector.
func OpenDB(cfg Config) (*DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	store := &DB{DB: db, path: cfg.Path, inMemory: cfg.InMemory}
	if cfg.InMemory || cfg.GCInterval <= 0 {
		return store, nil
	}

	collector, err := NewCollector(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session store compaction: %w", err)
	}
	collector.Start()
	store.collector = collector
	return store, nil
}

// OpenInMemory opens a throwaway session store.
func OpenInMemory() (*DB, error) {
	return OpenDB(InMemoryConfig())
}

// Close stops compaction and closes the store.
func (d *DB) Close() error {
	if d.collector != nil {
		d.collector.Stop()
	}
	return d.DB.Close()
}

// Path returns the data directory, or "" for an in-memory store.
func (d *DB) Path() string { return d.path }

// InMemory reports whether sessions live only in RAM.
func (d *DB) InMemory() bool { return d.inMemory }

// WithTxn runs fn in a read-write transaction, committing only when fn
// succeeds.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return d.txn(ctx, true, fn)
}

// WithReadTxn runs fn against a read-only view.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return d.txn(ctx, false, fn)
}

func (d *DB) txn(ctx context.Context, update bool, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	txn := d.DB.NewTransaction(update)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	if !update {
		return nil
	}
	return txn.Commit()
}
