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

// Store owns the current State of one timeline.
//
// # Description
//
// Store holds the single mutable reference to a State, re-invokes Reduce
// on every Dispatch, and publishes each resulting State to subscribers.
// Boundary no-ops are not published.
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type Store[T any] struct {
	state       State[T]
	subscribers []subscriber[T]
	nextID      int
}

type subscriber[T any] struct {
	id int
	fn func(State[T])
}

// NewStore creates a Store starting at initial.
func NewStore[T any](initial T, opts ...Option[T]) *Store[T] {
	return &Store[T]{state: New(initial, opts...)}
}

// NewStoreFrom creates a Store holding an existing State.
func NewStoreFrom[T any](s State[T]) *Store[T] {
	return &Store[T]{state: s}
}

// State returns the current State.
func (st *Store[T]) State() State[T] {
	return st.state
}

// Dispatch reduces a against the current State.
//
// # Outputs
//
//   - State[T]: The new current State.
//   - bool: Whether the action changed the timeline.
func (st *Store[T]) Dispatch(a Action[T]) (State[T], bool) {
	next, applied := Step(st.state, a)
	if !applied {
		return st.state, false
	}
	st.state = next
	for _, sub := range st.subscribers {
		sub.fn(next)
	}
	return next, true
}

// Set dispatches SetAction(v).
func (st *Store[T]) Set(v T) State[T] {
	next, _ := st.Dispatch(SetAction(v))
	return next
}

// Undo dispatches an undo action.
func (st *Store[T]) Undo() State[T] {
	next, _ := st.Dispatch(UndoAction[T]())
	return next
}

// Redo dispatches a redo action.
func (st *Store[T]) Redo() State[T] {
	next, _ := st.Dispatch(RedoAction[T]())
	return next
}

// Reset dispatches ResetAction(v).
func (st *Store[T]) Reset(v T) State[T] {
	next, _ := st.Dispatch(ResetAction(v))
	return next
}

// CanUndo reports whether the current State has a past.
func (st *Store[T]) CanUndo() bool { return st.state.CanUndo() }

// CanRedo reports whether the current State has a future.
func (st *Store[T]) CanRedo() bool { return st.state.CanRedo() }

// Subscribe registers fn to receive every applied State.
//
// Subscribers run synchronously inside Dispatch, in registration order.
// The returned function removes the subscription and is safe to call more
// than once.
func (st *Store[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	st.nextID++
	id := st.nextID
	st.subscribers = append(st.subscribers, subscriber[T]{id: id, fn: fn})

	return func() {
		for i, sub := range st.subscribers {
			if sub.id == id {
				st.subscribers = append(st.subscribers[:i:i], st.subscribers[i+1:]...)
				return
			}
		}
	}
}
