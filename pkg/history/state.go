// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

// State is one point on a linear undo/redo timeline.
//
// # Description
//
// State is an immutable value. Every transition returns a new State with
// freshly allocated sequences, so a State handed to another goroutine or
// kept for later comparison never changes underneath its holder.
//
// The zero State holds the zero value of T as its present and has no
// past or future. Use New to start from a specific value.
//
// # Thread Safety
//
// Safe for concurrent reads. Values of T are not copied unless a clone
// function was configured with WithClone.
type State[T any] struct {
	past    []T // oldest first
	present T
	future  []T // nearest-undone last, reversed by Future()
	opts    *options[T]
}

// Snapshot is an exported copy of a State.
//
// Future is ordered nearest-undone first, matching Future().
type Snapshot[T any] struct {
	Past    []T `json:"past" yaml:"past"`
	Present T   `json:"present" yaml:"present"`
	Future  []T `json:"future" yaml:"future"`
}

type options[T any] struct {
	limit int
	clone func(T) T
}

// Option configures a State created by New or FromSnapshot.
type Option[T any] func(*options[T])

// WithLimit bounds the number of recorded steps.
//
// # Description
//
// When n > 0, len(past)+len(future) never exceeds n. Set drops the oldest
// past entries once the bound is reached. n <= 0 means unbounded, which is
// the default.
func WithLimit[T any](n int) Option[T] {
	return func(o *options[T]) {
		if n < 0 {
			n = 0
		}
		o.limit = n
	}
}

// WithClone installs a deep-copy function for values of T.
//
// The function is applied to every value accepted by the State (New, Set,
// Reset, FromSnapshot) and to every value it hands out (Present, Past,
// Future, Snapshot). Use it when T contains maps, slices, or pointers.
func WithClone[T any](fn func(T) T) Option[T] {
	return func(o *options[T]) {
		o.clone = fn
	}
}

// New creates a State with the given present value and no history.
func New[T any](initial T, opts ...Option[T]) State[T] {
	o := &options[T]{}
	for _, opt := range opts {
		opt(o)
	}
	return State[T]{
		present: o.cloneValue(initial),
		opts:    o,
	}
}

// FromSnapshot rebuilds a State from a Snapshot.
//
// # Description
//
// Used to restore persisted timelines. If a limit is configured and the
// snapshot holds more steps than allowed, the oldest past entries are
// dropped first, then the farthest future entries.
func FromSnapshot[T any](snap Snapshot[T], opts ...Option[T]) State[T] {
	s := New(snap.Present, opts...)
	s.past = s.opts.cloneAll(snap.Past)
	s.future = reversed(s.opts.cloneAll(snap.Future))
	return s.trimmed()
}

// Set records newValue as the present.
//
// The old present is appended to past and the future is discarded, even
// when newValue equals the current present.
func (s State[T]) Set(newValue T) State[T] {
	next := State[T]{
		past:    appendCopy(s.past, s.present),
		present: s.opts.cloneValue(newValue),
		opts:    s.opts,
	}
	return next.trimmed()
}

// Undo steps back to the most recent past value.
//
// Returns s unchanged when there is nothing to undo.
func (s State[T]) Undo() State[T] {
	if len(s.past) == 0 {
		return s
	}
	last := len(s.past) - 1
	return State[T]{
		past:    appendCopy(s.past[:last]),
		present: s.past[last],
		future:  appendCopy(s.future, s.present),
		opts:    s.opts,
	}
}

// Redo steps forward to the nearest undone value.
//
// Returns s unchanged when there is nothing to redo.
func (s State[T]) Redo() State[T] {
	if len(s.future) == 0 {
		return s
	}
	last := len(s.future) - 1
	return State[T]{
		past:    appendCopy(s.past, s.present),
		present: s.future[last],
		future:  appendCopy(s.future[:last]),
		opts:    s.opts,
	}
}

// Reset discards all history and makes newValue the present.
func (s State[T]) Reset(newValue T) State[T] {
	return State[T]{
		present: s.opts.cloneValue(newValue),
		opts:    s.opts,
	}
}

// CanUndo reports whether past is non-empty.
func (s State[T]) CanUndo() bool { return len(s.past) > 0 }

// CanRedo reports whether future is non-empty.
func (s State[T]) CanRedo() bool { return len(s.future) > 0 }

// UndoDepth returns the number of values in past.
func (s State[T]) UndoDepth() int { return len(s.past) }

// RedoDepth returns the number of values in future.
func (s State[T]) RedoDepth() int { return len(s.future) }

// Limit returns the configured step bound, or 0 when unbounded.
func (s State[T]) Limit() int {
	if s.opts == nil {
		return 0
	}
	return s.opts.limit
}

// Present returns the current value.
func (s State[T]) Present() T {
	return s.opts.cloneValue(s.present)
}

// Past returns a copy of past, oldest first.
func (s State[T]) Past() []T {
	return s.opts.cloneAll(s.past)
}

// Future returns a copy of future, nearest-undone first.
func (s State[T]) Future() []T {
	return reversed(s.opts.cloneAll(s.future))
}

// Snapshot returns an exported copy of the State.
func (s State[T]) Snapshot() Snapshot[T] {
	return Snapshot[T]{
		Past:    s.Past(),
		Present: s.Present(),
		Future:  s.Future(),
	}
}

// trimmed enforces the configured limit. Callers pass a State whose
// sequences are already private copies.
func (s State[T]) trimmed() State[T] {
	limit := s.Limit()
	if limit == 0 {
		return s
	}
	if excess := len(s.past) - limit; excess > 0 {
		s.past = appendCopy(s.past[excess:])
	}
	if excess := len(s.past) + len(s.future) - limit; excess > 0 {
		// future is stored nearest last, so the farthest entries lead.
		s.future = appendCopy(s.future[excess:])
	}
	return s
}

func (o *options[T]) cloneValue(v T) T {
	if o == nil || o.clone == nil {
		return v
	}
	return o.clone(v)
}

func (o *options[T]) cloneAll(src []T) []T {
	out := make([]T, len(src))
	for i, v := range src {
		out[i] = o.cloneValue(v)
	}
	return out
}

// appendCopy returns a new slice holding src followed by extra. The result
// never shares a backing array with src.
func appendCopy[T any](src []T, extra ...T) []T {
	out := make([]T, len(src), len(src)+len(extra))
	copy(out, src)
	return append(out, extra...)
}

func reversed[T any](src []T) []T {
	for i, j := 0, len(src)-1; i < j; i, j = i+1, j-1 {
		src[i], src[j] = src[j], src[i]
	}
	return src
}
