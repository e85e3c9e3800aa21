// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes session records out of the server as indented
// JSON, to a local file, stdout, or a Google Cloud Storage object.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/timeline/services/timeline/storage"
)

var (
	// ErrEmptyTarget is returned when no target is given.
	ErrEmptyTarget = errors.New("export target must not be empty")

	// ErrInvalidTarget is returned for a malformed gs:// URL.
	ErrInvalidTarget = errors.New("invalid export target")
)

// Kind identifies where a Target points.
type Kind int

const (
	// KindFile is a local filesystem path.
	KindFile Kind = iota

	// KindStdout is "-".
	KindStdout

	// KindGCS is gs://bucket/object.
	KindGCS
)

// Target is a parsed export destination.
type Target struct {
	Kind   Kind
	Path   string
	Bucket string
	Object string
}

// String returns the target in the form ParseTarget accepts.
func (t Target) String() string {
	switch t.Kind {
	case KindStdout:
		return "-"
	case KindGCS:
		return "gs://" + t.Bucket + "/" + t.Object
	default:
		return t.Path
	}
}

// ParseTarget parses "-", "gs://bucket/object", or a file path.
//
// An object name ending in "/" is treated as a prefix and completed by the
// exporter with "<session-id>.json".
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Target{}, ErrEmptyTarget
	case s == "-":
		return Target{Kind: KindStdout}, nil
	case strings.HasPrefix(s, "gs://"):
		rest := strings.TrimPrefix(s, "gs://")
		bucket, object, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || object == "" {
			return Target{}, fmt.Errorf("%w: %q needs gs://bucket/object", ErrInvalidTarget, s)
		}
		return Target{Kind: KindGCS, Bucket: bucket, Object: object}, nil
	default:
		return Target{Kind: KindFile, Path: s}, nil
	}
}

// Encode writes rec to w as indented JSON followed by a newline.
func Encode(w io.Writer, rec storage.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	return nil
}

// Exporter writes a record somewhere and reports where.
type Exporter interface {
	Export(ctx context.Context, rec storage.Record) (location string, err error)
}

// WriterExporter writes records to an io.Writer.
type WriterExporter struct {
	W io.Writer
}

// Export implements Exporter.
func (e WriterExporter) Export(ctx context.Context, rec storage.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := Encode(e.W, rec); err != nil {
		return "", err
	}
	return "-", nil
}

// FileExporter writes records to a local path.
//
// The file is written to a temporary sibling and renamed, so readers never
// see a partial export. A path ending in a separator, or naming an
// existing directory, receives "<session-id>.json".
type FileExporter struct {
	Path string
}

// Export implements Exporter.
func (e FileExporter) Export(ctx context.Context, rec storage.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := e.Path
	if strings.HasSuffix(path, string(os.PathSeparator)) {
		path = filepath.Join(path, rec.ID+".json")
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, rec.ID+".json")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".timeline-export-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, rec); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename export to %s: %w", path, err)
	}
	return path, nil
}
