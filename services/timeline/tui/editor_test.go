// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeText(m EditorModel, text string) EditorModel {
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(EditorModel)
	}
	return m
}

func press(m EditorModel, key tea.KeyType) (EditorModel, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: key})
	return next.(EditorModel), cmd
}

func TestNewEditorModel(t *testing.T) {
	model := NewEditorModel(EditorConfig{Initial: "hi"})

	if model.Value() != "hi" {
		t.Errorf("Value() = %q, want %q", model.Value(), "hi")
	}
	if model.config.Title != "timeline" {
		t.Errorf("Title = %q, want default", model.config.Title)
	}
	if model.config.Width != 60 {
		t.Errorf("Width = %d, want 60", model.config.Width)
	}
	if model.State().CanUndo() || model.State().CanRedo() {
		t.Error("new editor should have no history")
	}
	if !model.input.Focused() {
		t.Error("input should be focused")
	}
}

func TestEditorModel_EachKeystrokeIsAStep(t *testing.T) {
	model := typeText(NewEditorModel(DefaultEditorConfig()), "abc")

	if model.Value() != "abc" {
		t.Fatalf("Value() = %q, want %q", model.Value(), "abc")
	}
	past := model.State().Past()
	want := []string{"", "a", "ab"}
	if strings.Join(past, ",") != strings.Join(want, ",") || len(past) != len(want) {
		t.Errorf("Past() = %q, want %q", past, want)
	}
}

func TestEditorModel_UndoRedo(t *testing.T) {
	model := typeText(NewEditorModel(DefaultEditorConfig()), "ab")

	model, _ = press(model, tea.KeyCtrlZ)
	if model.Value() != "a" || model.input.Value() != "a" {
		t.Errorf("after undo: store %q, input %q, want %q", model.Value(), model.input.Value(), "a")
	}

	model, _ = press(model, tea.KeyCtrlZ)
	model, _ = press(model, tea.KeyCtrlZ)
	if model.Value() != "" {
		t.Errorf("undo past the start should stay at %q, got %q", "", model.Value())
	}

	model, _ = press(model, tea.KeyCtrlY)
	if model.Value() != "a" {
		t.Errorf("after redo: %q, want %q", model.Value(), "a")
	}
	if model.State().RedoDepth() != 1 {
		t.Errorf("RedoDepth() = %d, want 1", model.State().RedoDepth())
	}

	// Typing after an undo discards the redo branch.
	model = typeText(model, "x")
	if model.Value() != "ax" {
		t.Errorf("Value() = %q, want %q", model.Value(), "ax")
	}
	if model.State().CanRedo() {
		t.Error("typing should clear the future")
	}
}

func TestEditorModel_Reset(t *testing.T) {
	model := typeText(NewEditorModel(EditorConfig{Initial: "start"}), "!!")

	model, _ = press(model, tea.KeyCtrlR)
	if model.Value() != "start" || model.input.Value() != "start" {
		t.Errorf("after reset: store %q, input %q", model.Value(), model.input.Value())
	}
	if model.State().CanUndo() || model.State().CanRedo() {
		t.Error("reset should clear both directions")
	}
}

func TestEditorModel_Limit(t *testing.T) {
	model := typeText(NewEditorModel(EditorConfig{Limit: 2}), "abcd")

	if got := model.State().UndoDepth(); got != 2 {
		t.Errorf("UndoDepth() = %d, want 2", got)
	}
}

func TestEditorModel_Quit(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		model := NewEditorModel(DefaultEditorConfig())
		model, cmd := press(model, key)
		if !model.quit {
			t.Errorf("%v: quit not set", key)
		}
		if cmd == nil {
			t.Errorf("%v: expected quit command", key)
		} else if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v: expected tea.QuitMsg", key)
		}
		if model.View() != "" {
			t.Errorf("%v: view should be empty after quit", key)
		}
	}
}

func TestEditorModel_NonEditingKeysRecordNothing(t *testing.T) {
	model := typeText(NewEditorModel(DefaultEditorConfig()), "ab")
	depth := model.State().UndoDepth()

	model, _ = press(model, tea.KeyLeft)
	model, _ = press(model, tea.KeyHome)
	if model.State().UndoDepth() != depth {
		t.Errorf("cursor movement recorded history: depth %d, want %d", model.State().UndoDepth(), depth)
	}
}

func TestEditorModel_View(t *testing.T) {
	model := NewEditorModel(EditorConfig{Title: "notes", Initial: "x"})
	view := model.View()

	for _, want := range []string{"notes", "undo", "redo", "reset", "0/0"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}

	model = typeText(model, "y")
	if !strings.Contains(model.View(), "1/0") {
		t.Errorf("View() should show depths 1/0:\n%s", model.View())
	}
}
