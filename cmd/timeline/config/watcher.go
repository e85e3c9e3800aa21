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
	"log/slog"

	"github.com/AleutianAI/timeline/pkg/filewatch"
)

// Watch calls onChange with the reloaded config each time the file at path
// is written. A file that fails to load or validate is logged and skipped,
// so onChange only ever sees valid configs. Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Config), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	return filewatch.Watch(ctx, path, func() {
		cfg, err := Load(path)
		if err != nil {
			logger.Warn("config reload failed, keeping previous config",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return
		}
		logger.Info("config reloaded", slog.String("path", path))
		onChange(cfg)
	}, logger)
}
