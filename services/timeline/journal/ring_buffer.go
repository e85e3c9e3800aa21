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

// RingBuffer is a fixed-size circular buffer.
//
// # Description
//
// Provides O(1) push and bounded memory usage. When full, the oldest item
// is overwritten.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type RingBuffer[T any] struct {
	data  []T
	head  int // next write position
	count int
}

// NewRingBuffer creates a ring buffer holding at most capacity items.
// A non-positive capacity falls back to DefaultCapacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingBuffer[T]{data: make([]T, capacity)}
}

// Push adds an item, overwriting the oldest one when full.
//
// # Outputs
//
//   - bool: True if an older item was overwritten.
func (r *RingBuffer[T]) Push(item T) bool {
	r.data[r.head] = item
	r.head = (r.head + 1) % len(r.data)
	if r.count == len(r.data) {
		return true
	}
	r.count++
	return false
}

// Slice returns all items oldest first, as a copy.
func (r *RingBuffer[T]) Slice() []T {
	result := make([]T, r.count)
	start := r.tail()
	for i := range result {
		result[i] = r.data[(start+i)%len(r.data)]
	}
	return result
}

// Last returns up to n items, newest first.
func (r *RingBuffer[T]) Last(n int) []T {
	if n <= 0 || r.count == 0 {
		return []T{}
	}
	if n > r.count {
		n = r.count
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		idx := r.head - 1 - i
		if idx < 0 {
			idx += len(r.data)
		}
		result[i] = r.data[idx]
	}
	return result
}

// Len returns the current number of items.
func (r *RingBuffer[T]) Len() int { return r.count }

// Cap returns the maximum number of items.
func (r *RingBuffer[T]) Cap() int { return len(r.data) }

// Clear removes all items and releases their references.
func (r *RingBuffer[T]) Clear() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.count = 0
}

func (r *RingBuffer[T]) tail() int {
	return (r.head - r.count + len(r.data)) % len(r.data)
}
