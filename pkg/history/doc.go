// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides a linear undo/redo timeline over any value type.
//
// A State holds three parts:
//
//   - past: every value before the present, oldest first
//   - present: the current value, always defined
//   - future: values that were undone, nearest-undone first
//
// # Transitions
//
// Four transitions are supported and each one returns a new State; the
// receiver is never modified:
//
//	s := history.New("")
//	s = s.Set("a")   // past [""]       present "a"  future []
//	s = s.Set("b")   // past ["" "a"]   present "b"  future []
//	s = s.Undo()     // past [""]       present "a"  future ["b"]
//	s = s.Redo()     // past ["" "a"]   present "b"  future []
//	s = s.Reset("z") // past []         present "z"  future []
//
// Set after an Undo discards the whole future. The timeline never branches.
//
// # Boundaries
//
// Undo with an empty past and Redo with an empty future are no-ops. They
// return the state unchanged and never report an error.
//
// # Reducer Form
//
// The same transitions are available as a pure reducer over tagged actions,
// for callers that hold the current State themselves:
//
//	s = history.Reduce(s, history.SetAction("c"))
//	s = history.Reduce(s, history.UndoAction[string]())
//
// Store wraps that pattern for a single owner and publishes every new
// snapshot to subscribers.
//
// # Thread Safety
//
// State values are immutable and may be shared between goroutines.
// Store is NOT safe for concurrent use; the owner serializes calls.
package history
