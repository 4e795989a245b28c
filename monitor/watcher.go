// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"sync"
	"time"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/schema/integrity"
)

// Editor growth thresholds. A change that adds more than
// PasteGrowthThreshold characters is a paste; one that adds more than
// LargePasteThreshold is flagged as a large paste.
const (
	PasteGrowthThreshold = 10
	LargePasteThreshold  = 50
)

// EventKind names an environment event reported by the host.
type EventKind string

const (
	EventVisibilityHidden  EventKind = "visibility_hidden"
	EventVisibilityVisible EventKind = "visibility_visible"
	EventFullscreenExit    EventKind = "fullscreen_exit"
	EventFullscreenEnter   EventKind = "fullscreen_enter"
	EventContextMenu       EventKind = "context_menu"
	EventKeyDown           EventKind = "key_down"
	EventEditorChange      EventKind = "editor_change"
	EventFocusOut          EventKind = "focus_out"
	EventFocusIn           EventKind = "focus_in"
)

// Event is one environment event. Which fields matter depends on Kind.
type Event struct {
	Kind EventKind `json:"kind"`

	// At is when the event happened. Zero means now.
	At time.Time `json:"at,omitzero"`

	// Key and the modifier flags describe an EventKeyDown.
	Key   string `json:"key,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`

	// CodeLength is the editor's content length after an
	// EventEditorChange.
	CodeLength int `json:"code_length,omitempty"`

	// URL is the page address for EventVisibilityHidden; Page is the
	// page title for EventFocusOut.
	URL  string `json:"url,omitempty"`
	Page string `json:"page,omitempty"`
}

// Action tells the host what to do with the event it reported.
type Action struct {
	// Suppress asks the host to cancel the event's default behavior.
	Suppress bool
}

// Watcher maps environment events to findings. It tracks the editor
// length between changes and whether the page is fullscreen. Safe for
// concurrent use.
type Watcher struct {
	clock clock.Clock

	mu         sync.Mutex
	codeLength int
	fullscreen bool
}

// NewWatcher returns a Watcher whose editor starts with codeLength
// characters (the question's starter code, usually).
func NewWatcher(clk clock.Clock, codeLength int) *Watcher {
	return &Watcher{clock: clk, codeLength: codeLength}
}

// Interpret classifies event. ok is false when the event produces no
// finding (becoming visible, entering fullscreen, editor shrink,
// unrelated keys).
func (w *Watcher) Interpret(event Event) (finding integrity.Finding, action Action, ok bool) {
	at := event.At
	if at.IsZero() {
		at = w.clock.Now()
	}

	switch event.Kind {
	case EventVisibilityHidden:
		return integrity.NewFinding(integrity.KindTabSwitch, integrity.MessageHidden, at,
			map[string]any{"url": event.URL}), Action{}, true

	case EventFullscreenExit:
		w.setFullscreen(false)
		return integrity.NewFinding(integrity.KindFullscreenExit, integrity.MessageFullscreenExit, at, nil),
			Action{}, true

	case EventFullscreenEnter:
		w.setFullscreen(true)

	case EventContextMenu:
		return integrity.NewFinding(integrity.KindRightClick, integrity.MessageRightClick, at, nil),
			Action{Suppress: true}, true

	case EventKeyDown:
		if (event.Ctrl || event.Meta) && event.Key == "c" {
			return integrity.NewFinding(integrity.KindCopyAttempt, integrity.MessageCopyAttempt, at, nil),
				Action{}, true
		}
		if (event.Alt || event.Meta) && event.Key == "Tab" {
			return integrity.NewFinding(integrity.KindTabSwitch, integrity.MessageTabCombination, at, nil),
				Action{Suppress: true}, true
		}

	case EventEditorChange:
		return w.editorChange(event.CodeLength, at)

	case EventFocusOut:
		return integrity.NewFinding(integrity.KindFocusOut, "", at,
			map[string]any{"page": event.Page}), Action{}, true

	case EventFocusIn:
		return integrity.NewFinding(integrity.KindFocusIn, "", at, nil), Action{}, true
	}

	return integrity.Finding{}, Action{}, false
}

func (w *Watcher) editorChange(codeLength int, at time.Time) (integrity.Finding, Action, bool) {
	w.mu.Lock()
	growth := codeLength - w.codeLength
	w.codeLength = codeLength
	w.mu.Unlock()

	switch {
	case growth > PasteGrowthThreshold:
		return integrity.NewFinding(integrity.KindPaste, "", at, map[string]any{
			"code_length":    codeLength,
			"pasted_length":  growth,
			"is_large_paste": growth > LargePasteThreshold,
		}), Action{}, true
	case growth > 0:
		return integrity.NewFinding(integrity.KindKeypress, "", at, map[string]any{
			"key":         "char",
			"code_length": codeLength,
		}), Action{}, true
	}
	return integrity.Finding{}, Action{}, false
}

// ResetEditor sets the tracked editor length without producing a
// finding, for when the host loads a different question's code.
func (w *Watcher) ResetEditor(codeLength int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.codeLength = codeLength
}

// Fullscreen reports whether the last fullscreen event entered
// fullscreen.
func (w *Watcher) Fullscreen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fullscreen
}

func (w *Watcher) setFullscreen(fullscreen bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fullscreen = fullscreen
}
