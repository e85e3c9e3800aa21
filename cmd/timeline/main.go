// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command timeline hosts undo/redo timelines.
//
// # Usage
//
//	timeline serve                      # HTTP API on :12230
//	timeline replay script.yaml --watch # rerun a script on every save
//	timeline edit "draft"               # terminal editor with undo/redo
//	timeline export <session-id> -      # dump a stored session as JSON
//
// Example requests:
//
//	# Create a session
//	curl -X POST http://localhost:12230/v1/timeline/sessions \
//	  -H "Content-Type: application/json" \
//	  -d '{"initial": {"text": ""}}'
//
//	# Record a value, then undo it
//	curl -X POST http://localhost:12230/v1/timeline/sessions/<id>/set \
//	  -d '{"value": {"text": "hello"}}'
//	curl -X POST http://localhost:12230/v1/timeline/sessions/<id>/undo
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
