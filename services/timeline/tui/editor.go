// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides a terminal editor whose every change is recorded
// in a history store, with undo and redo bound to the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/timeline/pkg/history"
)

// =============================================================================
// Styles
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	activeHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Faint(true)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// =============================================================================
// Configuration
// =============================================================================

// EditorConfig configures an EditorModel.
type EditorConfig struct {
	// Title is shown above the input. Default: "timeline".
	Title string

	// Initial is the starting text and the target of ctrl+r.
	Initial string

	// Limit bounds recorded undo steps. 0 is unbounded.
	Limit int

	// CharLimit caps the text length. 0 is unlimited.
	CharLimit int

	// Width is the visible input width. Default: 60.
	Width int
}

// DefaultEditorConfig returns an unbounded editor with an empty buffer.
func DefaultEditorConfig() EditorConfig {
	return EditorConfig{
		Title: "timeline",
		Width: 60,
	}
}

// =============================================================================
// Model
// =============================================================================

// EditorModel is a bubbletea model for a single-line editor.
//
// # Description
//
// Every keystroke that changes the text is recorded with Store.Set, so each
// edit is one undo step. ctrl+z and ctrl+y walk the timeline, ctrl+r resets
// it to the initial text with no history, and esc or ctrl+c quits.
//
// # Thread Safety
//
// Not safe for concurrent use. bubbletea drives it from one goroutine.
type EditorModel struct {
	config EditorConfig
	store  *history.Store[string]
	input  textinput.Model
	quit   bool
}

// NewEditorModel creates a focused editor holding config.Initial.
func NewEditorModel(config EditorConfig) EditorModel {
	if config.Title == "" {
		config.Title = "timeline"
	}
	if config.Width <= 0 {
		config.Width = 60
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = config.CharLimit
	ti.Width = config.Width
	ti.SetValue(config.Initial)
	ti.CursorEnd()
	ti.Focus()

	return EditorModel{
		config: config,
		store:  history.NewStore(config.Initial, history.WithLimit[string](config.Limit)),
		input:  ti,
	}
}

// Init starts the cursor blinking.
func (m EditorModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses.
func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.quit = true
			return m, tea.Quit

		case tea.KeyCtrlZ:
			m.sync(m.store.Undo())
			return m, nil

		case tea.KeyCtrlY:
			m.sync(m.store.Redo())
			return m, nil

		case tea.KeyCtrlR:
			m.sync(m.store.Reset(m.config.Initial))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != m.store.State().Present() {
		m.store.Set(value)
	}
	return m, cmd
}

// sync moves the input to the store's present after a timeline move.
func (m *EditorModel) sync(state history.State[string]) {
	m.input.SetValue(state.Present())
	m.input.CursorEnd()
}

// View renders the title, the input, and the key hints.
func (m EditorModel) View() string {
	if m.quit {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.config.Title))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderHints())
	b.WriteString("\n")
	return b.String()
}

func (m EditorModel) renderHints() string {
	state := m.store.State()

	hint := func(label string, enabled bool) string {
		if enabled {
			return activeHintStyle.Render(label)
		}
		return dimHintStyle.Render(label)
	}

	keys := []string{
		hint("[ctrl+z] undo", state.CanUndo()),
		hint("[ctrl+y] redo", state.CanRedo()),
		activeHintStyle.Render("[ctrl+r] reset"),
		activeHintStyle.Render("[esc] quit"),
	}
	stats := statsStyle.Render(fmt.Sprintf("%d/%d", state.UndoDepth(), state.RedoDepth()))
	return strings.Join(keys, "  ") + "  " + stats
}

// Value returns the current text.
func (m EditorModel) Value() string {
	return m.store.State().Present()
}

// State returns the editor's history.
func (m EditorModel) State() history.State[string] {
	return m.store.State()
}

// =============================================================================
// Program
// =============================================================================

// Run starts the editor on the terminal and blocks until the user quits or
// ctx is cancelled.
//
// # Outputs
//
//   - history.State[string]: The editor's final history.
//   - error: Non-nil if the terminal program fails.
func Run(ctx context.Context, config EditorConfig, opts ...tea.ProgramOption) (history.State[string], error) {
	model := NewEditorModel(config)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)

	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return model.State(), err
	}
	result, ok := final.(EditorModel)
	if !ok {
		return model.State(), fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	return result.State(), nil
}
