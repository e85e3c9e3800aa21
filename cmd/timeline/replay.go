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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/timeline/services/timeline/replay"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		watch  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Run a scripted sequence of actions and print every step",
		Long: `Run a YAML script through the history reducer offline.

Each step prints the action, whether it changed the timeline, and the
resulting past, present and future. Steps with an expect block fail the
run when the state differs. With --watch the script reruns on every save.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer logger.Close()

			out := cmd.OutOrStdout()
			emit := func(s replay.Script, frames []replay.Frame) error {
				if asJSON {
					return writeFramesJSON(out, frames)
				}
				return writeFramesTable(out, s, frames)
			}

			if !watch {
				s, err := replay.Load(args[0])
				if err != nil {
					return err
				}
				frames, runErr := replay.Run(cmd.Context(), s)
				if err := emit(s, frames); err != nil {
					return err
				}
				return runErr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return replay.Watch(ctx, args[0], func(s replay.Script, frames []replay.Frame, err error) {
				if len(frames) > 0 {
					if perr := emit(s, frames); perr != nil {
						logger.Warn("write frames failed", "error", perr)
					}
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "replay: %v\n", err)
				}
				if !asJSON {
					fmt.Fprintln(out, "--- waiting for changes ---")
				}
			}, logger.Slog())
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rerun the script when the file changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON frame per line")
	return cmd
}

func writeFramesJSON(w io.Writer, frames []replay.Frame) error {
	enc := json.NewEncoder(w)
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func writeFramesTable(w io.Writer, s replay.Script, frames []replay.Frame) error {
	if s.Name != "" {
		fmt.Fprintf(w, "# %s\n", s.Name)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "OP", "APPLIED", "PAST", "PRESENT", "FUTURE")
	for _, f := range frames {
		t.Row(
			fmt.Sprint(f.Step), f.Op.String(), fmt.Sprint(f.Applied),
			compact(f.Snapshot.Past), compact(f.Snapshot.Present), compact(f.Snapshot.Future))
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// compact renders v as single-line JSON.
func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
