// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/timeline/services/timeline/storage/badger"
	dgbadger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KeyPrefix namespaces session records inside the database.
const KeyPrefix = "timeline/session/"

var tracer = otel.Tracer("timeline.storage")

// BadgerRepository stores records as JSON values keyed by
// KeyPrefix + session id.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB serializes conflicting transactions.
type BadgerRepository struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerRepository wraps an open database. The caller keeps ownership
// of db and closes it.
func NewBadgerRepository(db *badger.DB, logger *slog.Logger) (*BadgerRepository, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerRepository{db: db, logger: logger.With(slog.String("component", "badger_repository"))}, nil
}

func recordKey(id string) []byte {
	return []byte(KeyPrefix + id)
}

// Save implements Repository.
func (r *BadgerRepository) Save(ctx context.Context, rec Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if rec.ID == "" {
		return ErrEmptyID
	}

	ctx, span := tracer.Start(ctx, "storage.Save",
		trace.WithAttributes(attribute.String("session_id", rec.ID)),
	)
	defer span.End()

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode record: %w", err)
	}

	err = r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}

	span.SetAttributes(attribute.Int("record_bytes", len(data)))
	r.logger.Debug("session record saved",
		slog.String("session_id", rec.ID),
		slog.Uint64("version", rec.Version),
		slog.Int("bytes", len(data)))
	return nil
}

// Load implements Repository.
func (r *BadgerRepository) Load(ctx context.Context, id string) (Record, error) {
	if err := checkContext(ctx); err != nil {
		return Record{}, err
	}
	if id == "" {
		return Record{}, ErrEmptyID
	}

	ctx, span := tracer.Start(ctx, "storage.Load",
		trace.WithAttributes(attribute.String("session_id", id)),
	)
	defer span.End()

	var rec Record
	err := r.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return Record{}, fmt.Errorf("read record %s: %w", id, err)
	}
	return rec, nil
}

// Delete implements Repository.
func (r *BadgerRepository) Delete(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}

	ctx, span := tracer.Start(ctx, "storage.Delete",
		trace.WithAttributes(attribute.String("session_id", id)),
	)
	defer span.End()

	err := r.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			return err
		}
		return txn.Delete(recordKey(id))
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// List implements Repository. Records come back in key order, which is
// session id order.
func (r *BadgerRepository) List(ctx context.Context) ([]Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "storage.List")
	defer span.End()

	prefix := []byte(KeyPrefix)
	var out []Record
	err := r.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("list records: %w", err)
	}

	span.SetAttributes(attribute.Int("records", len(out)))
	if out == nil {
		out = []Record{}
	}
	return out, nil
}
