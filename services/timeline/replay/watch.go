// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package replay

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/timeline/pkg/filewatch"
)

// Watch runs the script at path now and again every time the file
// changes, passing each result to fn. Load and run errors go to fn; Watch
// itself only fails if the file cannot be watched. Blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, fn func(Script, []Frame, error), logger *slog.Logger) error {
	run := func() {
		s, err := Load(path)
		if err != nil {
			fn(Script{}, nil, err)
			return
		}
		frames, err := Run(ctx, s)
		fn(s, frames, err)
	}

	w, err := filewatch.New(path, filewatch.DefaultDebounce, run, logger)
	if err != nil {
		return err
	}
	run()
	w.Run(ctx)
	return nil
}
