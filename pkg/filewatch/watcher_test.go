// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCallback(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "x"), 0, nil, nil)
	assert.ErrorIs(t, err, ErrNilCallback)
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New("/does/not/exist/file.yaml", 0, func() {}, nil)
	assert.Error(t, err)
}

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0600))

	changed := make(chan struct{}, 4)
	w, err := New(path, 20*time.Millisecond, func() { changed <- struct{}{} }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0600))
	select {
	case <-changed:
		t.Fatal("callback fired for an unrelated file")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0600))
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not fired after write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
