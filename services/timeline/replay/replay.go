// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package replay runs scripted action sequences through the history
// reducer offline. Scripts are YAML:
//
//	name: typing
//	initial: ""
//	limit: 0
//	steps:
//	  - op: set
//	    value: "h"
//	  - op: set
//	    value: "hi"
//	  - op: undo
//	    expect:
//	      present: "h"
//	      redo_depth: 1
//
// Each step produces a Frame. Steps with an expect block fail the run with
// ErrExpectationFailed when the resulting state differs.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/timeline/pkg/history"
)

var (
	// ErrEmptyScript is returned for a script with no steps.
	ErrEmptyScript = errors.New("script has no steps")

	// ErrInvalidLimit is returned for a negative limit.
	ErrInvalidLimit = errors.New("limit must not be negative")

	// ErrExpectationFailed is returned when a step's expect block does not
	// match the state after the step.
	ErrExpectationFailed = errors.New("expectation failed")
)

// Script is a parsed replay script.
type Script struct {
	Name    string `yaml:"name"`
	Initial any    `yaml:"initial"`
	Limit   int    `yaml:"limit"`
	Steps   []Step `yaml:"steps"`
}

// Step is one action in a script.
type Step struct {
	Op     string       `yaml:"op"`
	Value  any          `yaml:"value"`
	Expect *Expectation `yaml:"expect"`

	kind history.ActionKind
}

// Expectation checks the state after a step. Unset fields are not checked.
// Present is a yaml.Node so that an explicit null can be asserted.
type Expectation struct {
	Present   yaml.Node `yaml:"present"`
	Past      []any     `yaml:"past"`
	Future    []any     `yaml:"future"`
	UndoDepth *int      `yaml:"undo_depth"`
	RedoDepth *int      `yaml:"redo_depth"`
}

// Frame is the outcome of one step.
type Frame struct {
	Step     int                   `json:"step" yaml:"step"`
	Op       history.ActionKind    `json:"op" yaml:"op"`
	Applied  bool                  `json:"applied" yaml:"applied"`
	Snapshot history.Snapshot[any] `json:"snapshot" yaml:"snapshot"`
}

// Parse decodes and validates a script. Unknown fields are rejected.
func Parse(data []byte) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, ErrEmptyScript
		}
		return Script{}, fmt.Errorf("parse script: %w", err)
	}

	if s.Limit < 0 {
		return Script{}, ErrInvalidLimit
	}
	if len(s.Steps) == 0 {
		return Script{}, ErrEmptyScript
	}
	for i := range s.Steps {
		kind, err := history.ParseActionKind(s.Steps[i].Op)
		if err != nil {
			return Script{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		s.Steps[i].kind = kind
	}
	return s, nil
}

// Load reads and parses the script at path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (st Step) action() history.Action[any] {
	return history.Action[any]{Kind: st.kind, Value: st.Value}
}

// Run replays every step from the script's initial value.
//
// # Outputs
//
//   - []Frame: One frame per completed step, including the failing one
//     when an expectation does not hold.
//   - error: ErrExpectationFailed wrapped with the step number, or the
//     context error if ctx is cancelled between steps.
func Run(ctx context.Context, s Script) ([]Frame, error) {
	state := history.New(s.Initial, history.WithLimit[any](s.Limit))
	frames := make([]Frame, 0, len(s.Steps))

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		next, applied := history.Step(state, step.action())
		state = next
		frames = append(frames, Frame{
			Step:     i + 1,
			Op:       step.kind,
			Applied:  applied,
			Snapshot: state.Snapshot(),
		})

		if step.Expect != nil {
			if err := step.Expect.check(state); err != nil {
				return frames, fmt.Errorf("step %d (%s): %w", i+1, step.kind, err)
			}
		}
	}
	return frames, nil
}

func (e *Expectation) check(state history.State[any]) error {
	if !e.Present.IsZero() {
		var want any
		if err := e.Present.Decode(&want); err != nil {
			return fmt.Errorf("decode expected present: %w", err)
		}
		if got := state.Present(); !reflect.DeepEqual(got, want) {
			return fmt.Errorf("%w: present is %v, want %v", ErrExpectationFailed, got, want)
		}
	}
	if e.Past != nil && !reflect.DeepEqual(state.Past(), e.Past) {
		return fmt.Errorf("%w: past is %v, want %v", ErrExpectationFailed, state.Past(), e.Past)
	}
	if e.Future != nil && !reflect.DeepEqual(state.Future(), e.Future) {
		return fmt.Errorf("%w: future is %v, want %v", ErrExpectationFailed, state.Future(), e.Future)
	}
	if e.UndoDepth != nil && state.UndoDepth() != *e.UndoDepth {
		return fmt.Errorf("%w: undo depth is %d, want %d", ErrExpectationFailed, state.UndoDepth(), *e.UndoDepth)
	}
	if e.RedoDepth != nil && state.RedoDepth() != *e.RedoDepth {
		return fmt.Errorf("%w: redo depth is %d, want %d", ErrExpectationFailed, state.RedoDepth(), *e.RedoDepth)
	}
	return nil
}
