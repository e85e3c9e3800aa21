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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/timeline/services/timeline/tui"
)

func newEditCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "edit [initial text]",
		Short: "Edit a line of text with undo and redo",
		Long: `Open a terminal editor. Every keystroke is a step in the timeline.

  ctrl+z  undo
  ctrl+y  redo
  ctrl+r  reset to the initial text
  esc     quit and print the final text`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// The editor owns the terminal; logs only go to the log dir.
			logger, err := newLogger(cfg, nil, true)
			if err != nil {
				return err
			}
			defer logger.Close()

			editorCfg := tui.DefaultEditorConfig()
			if len(args) == 1 {
				editorCfg.Initial = args[0]
			}
			editorCfg.Limit = limit
			if limit == 0 {
				editorCfg.Limit = cfg.History.MaxHistory
			}

			state, err := tui.Run(cmd.Context(), editorCfg)
			if err != nil {
				return err
			}
			logger.Debug("editor closed",
				"undo_depth", state.UndoDepth(),
				"redo_depth", state.RedoDepth())
			fmt.Fprintln(cmd.OutOrStdout(), state.Present())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum undo steps (default from config, 0 is unbounded)")
	return cmd
}
