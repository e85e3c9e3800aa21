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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/timeline/services/timeline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() storage.Record {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	return storage.Record{
		ID:        "doc",
		Past:      []json.RawMessage{json.RawMessage(`"a"`)},
		Present:   json.RawMessage(`"b"`),
		Future:    []json.RawMessage{},
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr error
	}{
		{"-", Target{Kind: KindStdout}, nil},
		{"out/doc.json", Target{Kind: KindFile, Path: "out/doc.json"}, nil},
		{" gs://bucket/sessions/doc.json ", Target{Kind: KindGCS, Bucket: "bucket", Object: "sessions/doc.json"}, nil},
		{"gs://bucket/prefix/", Target{Kind: KindGCS, Bucket: "bucket", Object: "prefix/"}, nil},
		{"", Target{}, ErrEmptyTarget},
		{"gs://bucket", Target{}, ErrInvalidTarget},
		{"gs:///object", Target{}, ErrInvalidTarget},
		{"gs://bucket/", Target{}, ErrInvalidTarget},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "gs://b/o", Target{Kind: KindGCS, Bucket: "b", Object: "o"}.String())
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRecord()))

	assert.Contains(t, buf.String(), "\n  \"id\": \"doc\"")
	var back storage.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "doc", back.ID)
	assert.JSONEq(t, `"b"`, string(back.Present))
}

func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	loc, err := WriterExporter{W: &buf}.Export(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "-", loc)
	assert.NotEmpty(t, buf.String())
}

func TestFileExporter(t *testing.T) {
	dir := t.TempDir()

	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "out.json")
		loc, err := FileExporter{Path: path}.Export(context.Background(), sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, path, loc)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"version": 1`)
	})

	t.Run("existing directory", func(t *testing.T) {
		loc, err := FileExporter{Path: dir}.Export(context.Background(), sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "doc.json"), loc)
	})

	t.Run("no temp files left", func(t *testing.T) {
		matches, err := filepath.Glob(filepath.Join(dir, ".timeline-export-*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := FileExporter{Path: filepath.Join(dir, "x.json")}.Export(ctx, sampleRecord())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestGCSExporter(t *testing.T) {
	uploads := map[string]*bufferCloser{}
	e := &GCSExporter{
		bucket: "timeline-archive",
		object: "sessions/",
		newWriter: func(_ context.Context, bucket, object string) io.WriteCloser {
			w := &bufferCloser{}
			uploads[bucket+"/"+object] = w
			return w
		},
	}

	loc, err := e.Export(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "gs://timeline-archive/sessions/doc.json", loc)

	w := uploads["timeline-archive/sessions/doc.json"]
	require.NotNil(t, w)
	assert.True(t, w.closed)
	assert.Contains(t, w.String(), `"id": "doc"`)

	e.object = "fixed.json"
	loc, err = e.Export(context.Background(), sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "gs://timeline-archive/fixed.json", loc)
	assert.NoError(t, e.Close())
}

func TestNewGCSExporterRejectsNonGCSTarget(t *testing.T) {
	_, err := NewGCSExporter(context.Background(), Target{Kind: KindFile, Path: "x"}, "")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = NewGCSExporter(context.Background(), Target{Kind: KindGCS, Bucket: "b", Object: "o"}, "/does/not/exist.json")
	assert.Error(t, err)
}

func TestForTarget(t *testing.T) {
	var buf bytes.Buffer
	e, closeFn, err := ForTarget(context.Background(), Target{Kind: KindStdout}, &buf, "")
	require.NoError(t, err)
	assert.IsType(t, WriterExporter{}, e)
	assert.NoError(t, closeFn())

	e, _, err = ForTarget(context.Background(), Target{Kind: KindFile, Path: "p"}, &buf, "")
	require.NoError(t, err)
	assert.Equal(t, FileExporter{Path: "p"}, e)
}
