// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filewatch calls back when a single file changes on disk.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor produces when
// saving a file.
const DefaultDebounce = 100 * time.Millisecond

// ErrNilCallback is returned when Watch is given no callback.
var ErrNilCallback = errors.New("callback must not be nil")

// Watcher watches one file.
//
// # Description
//
// The parent directory is watched rather than the file, so editors that
// save by writing a new file and renaming it over the old one are still
// seen. Events for other files in the directory are ignored.
//
// # Thread Safety
//
// Run should only be called once.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// New creates a watcher for path. debounce <= 0 uses DefaultDebounce.
//
// # Outputs
//
//   - *Watcher: Ready to Run.
//   - error: ErrNilCallback, or a failure to create or register the
//     underlying fsnotify watcher.
func New(path string, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if onChange == nil {
		return nil, ErrNilCallback
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		watcher:  watcher,
	}, nil
}

// Run delivers change notifications until ctx is cancelled, then releases
// the watcher. Blocks; run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Debug("watched file changed", slog.String("path", w.path))
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("path", w.path), slog.String("error", err.Error()))

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// Watch is New followed by Run.
func Watch(ctx context.Context, path string, onChange func(), logger *slog.Logger) error {
	w, err := New(path, DefaultDebounce, onChange, logger)
	if err != nil {
		return err
	}
	w.Run(ctx)
	return nil
}
