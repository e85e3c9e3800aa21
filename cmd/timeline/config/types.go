// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration for the timeline binary.
package config

import (
	"log/slog"
	"time"

	"github.com/AleutianAI/timeline/pkg/logging"
	"github.com/AleutianAI/timeline/services/timeline"
	"github.com/AleutianAI/timeline/services/timeline/storage/badger"
	"github.com/AleutianAI/timeline/services/timeline/telemetry"
)

// Config is the root of timeline.yaml.
type Config struct {
	// Server: HTTP listener and rate limiting
	Server ServerConfig `yaml:"server"`

	// History: per-session limits
	History HistoryConfig `yaml:"history"`

	// Storage: where sessions survive restarts
	Storage StorageConfig `yaml:"storage"`

	// Telemetry: trace and metric exporters
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Logging: level, format and optional log directory
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port        int     `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort int     `yaml:"metrics_port" validate:"min=0,max=65535"` // 0 serves /metrics on Port
	Debug       bool    `yaml:"debug"`
	RateLimit   float64 `yaml:"rate_limit" validate:"gte=0"` // requests per second per client, 0 disables
	RateBurst   int     `yaml:"rate_burst" validate:"gte=0"`
}

type HistoryConfig struct {
	MaxHistory    int `yaml:"max_history" validate:"gte=0,lte=100000"` // 0 is unbounded
	JournalSize   int `yaml:"journal_size" validate:"gte=1"`
	MaxSessions   int `yaml:"max_sessions" validate:"gte=0"` // 0 is unlimited
	MaxValueBytes int `yaml:"max_value_bytes" validate:"gte=1"`
}

type StorageConfig struct {
	Path       string        `yaml:"path" validate:"required_without=InMemory"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	store := badger.DefaultConfig()
	svc := timeline.DefaultServiceConfig()

	return Config{
		Server: ServerConfig{
			Port:        12230,
			MetricsPort: 0,
			RateLimit:   50,
			RateBurst:   100,
		},
		History: HistoryConfig{
			MaxHistory:    svc.MaxHistory,
			JournalSize:   svc.JournalSize,
			MaxSessions:   svc.MaxSessions,
			MaxValueBytes: svc.MaxValueBytes,
		},
		Storage: StorageConfig{
			Path:       "~/.timeline/data",
			SyncWrites: store.SyncWrites,
			GCInterval: store.GCInterval,
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ServiceConfig converts the history section for timeline.NewService.
func (c Config) ServiceConfig() timeline.ServiceConfig {
	return timeline.ServiceConfig{
		MaxHistory:    c.History.MaxHistory,
		JournalSize:   c.History.JournalSize,
		MaxSessions:   c.History.MaxSessions,
		MaxValueBytes: c.History.MaxValueBytes,
	}
}

// BadgerConfig converts the storage section for badger.OpenDB, expanding a
// leading ~ in the path.
func (c Config) BadgerConfig(logger *slog.Logger) badger.Config {
	cfg := badger.DefaultConfig()
	cfg.Path = expandPath(c.Storage.Path)
	cfg.InMemory = c.Storage.InMemory
	cfg.SyncWrites = c.Storage.SyncWrites
	cfg.GCInterval = c.Storage.GCInterval
	cfg.Logger = logger
	return cfg
}

// LogLevel parses the logging level. Validate has already rejected
// unknown names, so an error here means Validate was skipped.
func (c Config) LogLevel() (logging.Level, error) {
	return logging.ParseLevel(c.Logging.Level)
}
