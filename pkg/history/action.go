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

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction indicates an action name that is not set, undo, redo,
// or reset.
var ErrUnknownAction = errors.New("unknown action")

// ActionKind tags an Action.
type ActionKind uint8

const (
	// ActionSet records Value as the new present.
	ActionSet ActionKind = iota + 1

	// ActionUndo steps back one value. Value is ignored.
	ActionUndo

	// ActionRedo steps forward one value. Value is ignored.
	ActionRedo

	// ActionReset discards all history. Value becomes the present.
	ActionReset
)

// String returns "set", "undo", "redo", "reset", or "unknown".
func (k ActionKind) String() string {
	switch k {
	case ActionSet:
		return "set"
	case ActionUndo:
		return "undo"
	case ActionRedo:
		return "redo"
	case ActionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ParseActionKind parses an action name. Case and surrounding space are
// ignored.
func ParseActionKind(name string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "set":
		return ActionSet, nil
	case "undo":
		return ActionUndo, nil
	case "redo":
		return ActionRedo, nil
	case "reset":
		return ActionReset, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	if k < ActionSet || k > ActionReset {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ActionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseActionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Action is a tagged transition request.
type Action[T any] struct {
	Kind  ActionKind
	Value T
}

// SetAction returns an action that records v.
func SetAction[T any](v T) Action[T] {
	return Action[T]{Kind: ActionSet, Value: v}
}

// UndoAction returns an undo action.
func UndoAction[T any]() Action[T] {
	return Action[T]{Kind: ActionUndo}
}

// RedoAction returns a redo action.
func RedoAction[T any]() Action[T] {
	return Action[T]{Kind: ActionRedo}
}

// ResetAction returns an action that discards history and makes v present.
func ResetAction[T any](v T) Action[T] {
	return Action[T]{Kind: ActionReset, Value: v}
}

// Reduce applies a to s and returns the resulting State.
//
// # Description
//
// Reduce is a pure function. Undo and redo at a boundary, and actions with
// an unknown kind, return s unchanged.
func Reduce[T any](s State[T], a Action[T]) State[T] {
	next, _ := Step(s, a)
	return next
}

// Step applies a to s like Reduce and also reports whether the timeline
// changed.
//
// # Outputs
//
//   - State[T]: The resulting state.
//   - bool: False for boundary no-ops and unknown kinds. Set and Reset
//     always report true.
func Step[T any](s State[T], a Action[T]) (State[T], bool) {
	switch a.Kind {
	case ActionSet:
		return s.Set(a.Value), true
	case ActionUndo:
		if !s.CanUndo() {
			return s, false
		}
		return s.Undo(), true
	case ActionRedo:
		if !s.CanRedo() {
			return s, false
		}
		return s.Redo(), true
	case ActionReset:
		return s.Reset(a.Value), true
	default:
		return s, false
	}
}
