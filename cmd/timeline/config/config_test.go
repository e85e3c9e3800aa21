// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/timeline/pkg/logging"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12230, cfg.Server.Port)
	assert.Equal(t, 0, cfg.History.MaxHistory)
	assert.Equal(t, 256, cfg.History.JournalSize)
	assert.Equal(t, 5*time.Minute, cfg.Storage.GCInterval)
	assert.True(t, cfg.Storage.SyncWrites)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9000
history:
  max_history: 50
storage:
  in_memory: true
  path: ""
  gc_interval: 30s
logging:
  level: debug
  json: true
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultConfig().Server.RateBurst, cfg.Server.RateBurst, "untouched fields keep defaults")
	assert.Equal(t, 50, cfg.History.MaxHistory)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 30*time.Second, cfg.Storage.GCInterval)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, level)

	svc := cfg.ServiceConfig()
	assert.Equal(t, 50, svc.MaxHistory)
	assert.Equal(t, cfg.History.MaxValueBytes, svc.MaxValueBytes)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "server:\n  prot: 80\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"negative history", "history:\n  max_history: -1\n"},
		{"zero journal", "history:\n  journal_size: 0\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"persistent without path", "storage:\n  path: \"\"\n"},
		{"bad duration", "storage:\n  gc_interval: soon\n"},
		{"not yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestBadgerConfigExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := DefaultConfig()
	bc := cfg.BadgerConfig(nil)
	assert.Equal(t, filepath.Join(home, ".timeline", "data"), bc.Path)
	assert.Equal(t, cfg.Storage.GCInterval, bc.GCInterval)

	cfg.Storage.Path = "/var/lib/timeline"
	assert.Equal(t, "/var/lib/timeline", cfg.BadgerConfig(nil).Path)
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "timeline.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "server")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	// Existing files are not overwritten.
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1\n"), 0600))
	require.NoError(t, WriteDefault(path))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Server.Port)
}

func TestWatchReloadsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1000\n"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg Config) { changes <- cfg }, nil)
	}()

	// The watcher registers asynchronously; rewrite until a change lands.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case cfg := <-changes:
			assert.Equal(t, 2000, cfg.Server.Port)
			return
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 2000\n"), 0600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
