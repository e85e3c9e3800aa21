// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal keeps a bounded log of the actions dispatched against a
// timeline session.
//
// The journal records what was asked and whether it changed the timeline,
// never the values themselves, so it stays small regardless of document
// size.
package journal

import (
	"time"

	"github.com/AleutianAI/timeline/pkg/history"
)

// DefaultCapacity is the number of entries kept when no size is given.
const DefaultCapacity = 256

// Entry describes one dispatched action.
type Entry struct {
	// Seq is a per-journal sequence number starting at 1.
	Seq uint64 `json:"seq"`

	// Action is the dispatched action kind.
	Action history.ActionKind `json:"action"`

	// Applied is false for boundary no-ops.
	Applied bool `json:"applied"`

	// UndoDepth and RedoDepth are the timeline sizes after the action.
	UndoDepth int `json:"undo_depth"`
	RedoDepth int `json:"redo_depth"`

	// At is when the action was dispatched.
	At time.Time `json:"at"`
}

// Journal is a bounded, sequence-numbered action log.
//
// # Thread Safety
//
// NOT safe for concurrent use; the owning session serializes access.
type Journal struct {
	ring    *RingBuffer[Entry]
	nextSeq uint64
	dropped uint64
	now     func() time.Time
}

// New creates a Journal keeping the most recent capacity entries.
func New(capacity int) *Journal {
	return &Journal{
		ring: NewRingBuffer[Entry](capacity),
		now:  time.Now,
	}
}

// Record appends an entry for an action and the resulting timeline depths.
func (j *Journal) Record(action history.ActionKind, applied bool, undoDepth, redoDepth int) Entry {
	j.nextSeq++
	entry := Entry{
		Seq:       j.nextSeq,
		Action:    action,
		Applied:   applied,
		UndoDepth: undoDepth,
		RedoDepth: redoDepth,
		At:        j.now().UTC(),
	}
	if j.ring.Push(entry) {
		j.dropped++
	}
	return entry
}

// Entries returns all retained entries, oldest first.
func (j *Journal) Entries() []Entry {
	return j.ring.Slice()
}

// Last returns up to n entries, newest first.
func (j *Journal) Last(n int) []Entry {
	return j.ring.Last(n)
}

// Len returns the number of retained entries.
func (j *Journal) Len() int { return j.ring.Len() }

// Dropped returns how many entries were overwritten.
func (j *Journal) Dropped() uint64 { return j.dropped }
