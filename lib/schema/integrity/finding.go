// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what a finding observed. Values are the wire names
// sent to the collector as the envelope type.
type Kind string

const (
	// KindNoFace means the face heuristic found too few skin-tone
	// pixels in the sampled frame.
	KindNoFace Kind = "no_face"

	// KindMultipleFaces means the face heuristic found so many
	// skin-tone pixels that more than one person is likely in frame.
	KindMultipleFaces Kind = "multiple_faces"

	// KindCameraDenied means the camera or microphone could not be
	// acquired. Reported once, at acquisition time.
	KindCameraDenied Kind = "camera_denied"

	// KindTabSwitch covers both the page losing visibility and an
	// alt/cmd-tab key combination.
	KindTabSwitch Kind = "tab_switch"

	KindFullscreenExit Kind = "fullscreen_exit"
	KindRightClick     Kind = "right_click"
	KindCopyAttempt    Kind = "copy_attempt"

	// KindNoiseDetected carries the measured mean spectrum level in
	// the "level" field.
	KindNoiseDetected Kind = "noise_detected"

	// KindPaste is an editor change that grew the content by more than
	// the paste threshold in one step.
	KindPaste Kind = "paste"

	// KindKeypress is an editor change that grew the content by a
	// small amount, treated as typing.
	KindKeypress Kind = "keypress"

	KindFocusOut Kind = "focus_out"
	KindFocusIn  Kind = "focus_in"
)

// IsKnown reports whether k is one of the defined kinds.
func (k Kind) IsKnown() bool {
	switch k {
	case KindNoFace, KindMultipleFaces, KindCameraDenied, KindTabSwitch,
		KindFullscreenExit, KindRightClick, KindCopyAttempt,
		KindNoiseDetected, KindPaste, KindKeypress, KindFocusOut, KindFocusIn:
		return true
	}
	return false
}

// Counted reports whether findings of this kind increment the
// violation ledger.
func (k Kind) Counted() bool {
	switch k {
	case KindNoFace, KindMultipleFaces, KindCameraDenied, KindTabSwitch,
		KindFullscreenExit, KindRightClick, KindCopyAttempt:
		return true
	}
	return false
}

// Severity ranks findings for reviewers. It is derived from the kind
// and never set independently.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severity returns the severity of findings of this kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindMultipleFaces, KindCameraDenied:
		return SeverityCritical
	case KindNoFace, KindTabSwitch, KindFullscreenExit, KindRightClick, KindCopyAttempt:
		return SeverityWarning
	}
	return SeverityInfo
}

// Candidate-facing messages for the ledger-counted kinds.
const (
	MessageNoFace         = "No face detected. Please stay in front of camera."
	MessageMultipleFaces  = "Multiple faces detected in frame."
	MessageCameraDenied   = "Camera/microphone access denied. Please allow access."
	MessageHidden         = "Tab switch detected. Stay on the exam page."
	MessageTabCombination = "Tab switching detected."
	MessageFullscreenExit = "Fullscreen exited. Please return to fullscreen."
	MessageRightClick     = "Right click is disabled during exam."
	MessageCopyAttempt    = "Copy shortcut detected."
)

// Finding is one classified observation. A Finding is immutable once
// built: Fields returns a copy.
type Finding struct {
	id        string
	kind      Kind
	message   string
	timestamp time.Time
	fields    map[string]any
}

// NewFinding builds a finding observed at the given time. Fields are
// extra payload values reported alongside the message (for example
// "level" for noise or "code_length" for keypresses); the map is
// copied.
func NewFinding(kind Kind, message string, at time.Time, fields map[string]any) Finding {
	return Finding{
		id:        uuid.NewString(),
		kind:      kind,
		message:   message,
		timestamp: at,
		fields:    maps.Clone(fields),
	}
}

// ID is a random identifier for correlating a finding across the
// ledger, logs, and the collector.
func (f Finding) ID() string { return f.id }

func (f Finding) Kind() Kind { return f.kind }

func (f Finding) Message() string { return f.message }

func (f Finding) Timestamp() time.Time { return f.timestamp }

func (f Finding) Severity() Severity { return f.kind.Severity() }

// Fields returns a copy of the extra payload fields. Nil when the
// finding has none.
func (f Finding) Fields() map[string]any { return maps.Clone(f.fields) }

// Field returns one payload field.
func (f Finding) Field(name string) (any, bool) {
	value, ok := f.fields[name]
	return value, ok
}

// Counted reports whether this finding increments the violation
// ledger.
func (f Finding) Counted() bool { return f.kind.Counted() }
