// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/timeline/services/timeline/storage"
)

// objectWriterFunc opens a writer for bucket/object.
type objectWriterFunc func(ctx context.Context, bucket, object string) io.WriteCloser

// GCSExporter uploads records to Google Cloud Storage.
type GCSExporter struct {
	client    *gcs.Client
	bucket    string
	object    string
	newWriter objectWriterFunc
}

// NewGCSExporter creates a client for target.
//
// # Inputs
//
//   - ctx: Context for client creation.
//   - target: A KindGCS target.
//   - credentialsFile: Optional service account key. Empty uses
//     Application Default Credentials.
//   - opts: Extra client options.
func NewGCSExporter(ctx context.Context, target Target, credentialsFile string, opts ...option.ClientOption) (*GCSExporter, error) {
	if target.Kind != KindGCS {
		return nil, fmt.Errorf("%w: %s is not a gs:// target", ErrInvalidTarget, target)
	}
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	e := &GCSExporter{client: client, bucket: target.Bucket, object: target.Object}
	e.newWriter = func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := e.client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = "application/json"
		w.CacheControl = "no-cache, no-store, must-revalidate"
		return w
	}
	return e, nil
}

// objectName resolves a prefix target to a per-session object.
func (e *GCSExporter) objectName(id string) string {
	if strings.HasSuffix(e.object, "/") {
		return e.object + id + ".json"
	}
	return e.object
}

// Export implements Exporter.
func (e *GCSExporter) Export(ctx context.Context, rec storage.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	object := e.objectName(rec.ID)
	location := "gs://" + e.bucket + "/" + object

	// Cancelling the writer's context aborts the upload instead of
	// committing a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := e.newWriter(wctx, e.bucket, object)
	if err := Encode(w, rec); err != nil {
		cancel()
		w.Close()
		return "", fmt.Errorf("upload %s: %w", location, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", location, err)
	}
	return location, nil
}

// Close releases the storage client.
func (e *GCSExporter) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// ForTarget returns the Exporter for target. GCS exporters must be closed
// by the caller; the returned close func is always safe to call.
func ForTarget(ctx context.Context, target Target, stdout io.Writer, credentialsFile string) (Exporter, func() error, error) {
	noop := func() error { return nil }
	switch target.Kind {
	case KindStdout:
		return WriterExporter{W: stdout}, noop, nil
	case KindGCS:
		e, err := NewGCSExporter(ctx, target, credentialsFile)
		if err != nil {
			return nil, noop, err
		}
		return e, e.Close, nil
	default:
		return FileExporter{Path: target.Path}, noop, nil
	}
}
