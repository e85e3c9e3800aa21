// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"testing"
	"time"

	"github.com/AleutianAI/timeline/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	t.Run("default capacity", func(t *testing.T) {
		r := NewRingBuffer[int](0)
		assert.Equal(t, DefaultCapacity, r.Cap())
	})

	t.Run("fills then wraps", func(t *testing.T) {
		r := NewRingBuffer[int](3)
		assert.False(t, r.Push(1))
		assert.False(t, r.Push(2))
		assert.False(t, r.Push(3))
		assert.Equal(t, []int{1, 2, 3}, r.Slice())

		assert.True(t, r.Push(4))
		assert.True(t, r.Push(5))
		assert.Equal(t, []int{3, 4, 5}, r.Slice())
		assert.Equal(t, 3, r.Len())
	})

	t.Run("last is newest first", func(t *testing.T) {
		r := NewRingBuffer[int](4)
		for i := 1; i <= 6; i++ {
			r.Push(i)
		}
		assert.Equal(t, []int{6, 5}, r.Last(2))
		assert.Equal(t, []int{6, 5, 4, 3}, r.Last(10))
		assert.Empty(t, r.Last(0))
	})

	t.Run("slice is a copy", func(t *testing.T) {
		r := NewRingBuffer[int](2)
		r.Push(1)
		s := r.Slice()
		s[0] = 99
		assert.Equal(t, []int{1}, r.Slice())
	})

	t.Run("clear", func(t *testing.T) {
		r := NewRingBuffer[int](2)
		r.Push(1)
		r.Push(2)
		r.Clear()
		assert.Equal(t, 0, r.Len())
		assert.Empty(t, r.Slice())
		r.Push(3)
		assert.Equal(t, []int{3}, r.Slice())
	})
}

func TestJournal_Record(t *testing.T) {
	j := New(2)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	first := j.Record(history.ActionSet, true, 1, 0)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, fixed, first.At)

	j.Record(history.ActionUndo, true, 0, 1)
	j.Record(history.ActionUndo, false, 0, 1)

	entries := j.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, uint64(3), entries[1].Seq)
	assert.False(t, entries[1].Applied)
	assert.Equal(t, uint64(1), j.Dropped())

	last := j.Last(1)
	require.Len(t, last, 1)
	assert.Equal(t, uint64(3), last[0].Seq)
	assert.Equal(t, 2, j.Len())
}
