// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/timeline/cmd/timeline/config"
	"github.com/AleutianAI/timeline/pkg/logging"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "timeline",
		Short: "Linear undo/redo history for any JSON value",
		Long: `timeline keeps a past, a present and a future for named sessions.
Every set is recorded, undo and redo walk the timeline, and reset starts over.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.timeline/timeline.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "log as JSON (default when stderr is not a terminal)")

	root.AddCommand(
		newServeCmd(opts),
		newReplayCmd(opts),
		newEditCmd(opts),
		newExportCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// path returns the config file in use.
func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath()
}

// load reads the config file, falling back to defaults when it is absent.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.path())
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("--log-level: %w", err)
		}
	}
	if o.logJSON {
		cfg.Logging.JSON = true
	}
	return cfg, nil
}

// newLogger builds the process logger. JSON is used when asked for or when
// stderr is not a terminal. quiet suppresses console output, for commands
// that own the terminal.
func newLogger(cfg config.Config, out io.Writer, quiet bool) (*logging.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "timeline",
		JSON:    cfg.Logging.JSON || !logging.StderrIsTerminal(),
		Quiet:   quiet,
		Output:  out,
	})
	slog.SetDefault(logger.Slog())
	return logger, nil
}
