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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/timeline/services/timeline/export"
	"github.com/AleutianAI/timeline/services/timeline/storage"
	"github.com/AleutianAI/timeline/services/timeline/storage/badger"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var credentials string

	cmd := &cobra.Command{
		Use:   "export <session-id> <target>",
		Short: "Write a stored session to a file, stdout or Cloud Storage",
		Long: `Read a session from the BadgerDB database and write it as JSON.

Targets:
  -                      stdout
  ./backup/              <session-id>.json in a directory
  session.json           a file
  gs://bucket/prefix/    an object in Google Cloud Storage

BadgerDB allows one process at a time, so stop "timeline serve" before
exporting from the same database.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Storage.InMemory {
				return errors.New("storage.in_memory is set; there is no database to export from")
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer logger.Close()

			target, err := export.ParseTarget(args[1])
			if err != nil {
				return err
			}

			dbCfg := cfg.BadgerConfig(nil)
			dbCfg.GCInterval = 0
			db, err := badger.OpenDB(dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			repo, err := storage.NewBadgerRepository(db, logger.Slog())
			if err != nil {
				return err
			}
			rec, err := repo.Load(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("session %q not found in %s", args[0], db.Path())
				}
				return err
			}

			exporter, closeExporter, err := export.ForTarget(cmd.Context(), target, cmd.OutOrStdout(), credentials)
			if err != nil {
				return err
			}
			defer closeExporter()

			location, err := exporter.Export(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if target.Kind != export.KindStdout {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", rec.ID, location)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&credentials, "credentials", "", "service account JSON for gs:// targets (default: application default credentials)")
	return cmd
}
