// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"testing"
	"time"
)

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind     Kind
		counted  bool
		severity Severity
	}{
		{KindNoFace, true, SeverityWarning},
		{KindMultipleFaces, true, SeverityCritical},
		{KindCameraDenied, true, SeverityCritical},
		{KindTabSwitch, true, SeverityWarning},
		{KindFullscreenExit, true, SeverityWarning},
		{KindRightClick, true, SeverityWarning},
		{KindCopyAttempt, true, SeverityWarning},
		{KindNoiseDetected, false, SeverityInfo},
		{KindPaste, false, SeverityInfo},
		{KindKeypress, false, SeverityInfo},
		{KindFocusOut, false, SeverityInfo},
		{KindFocusIn, false, SeverityInfo},
	}
	for _, test := range tests {
		t.Run(string(test.kind), func(t *testing.T) {
			if !test.kind.IsKnown() {
				t.Errorf("IsKnown() = false")
			}
			if got := test.kind.Counted(); got != test.counted {
				t.Errorf("Counted() = %v, want %v", got, test.counted)
			}
			if got := test.kind.Severity(); got != test.severity {
				t.Errorf("Severity() = %q, want %q", got, test.severity)
			}
		})
	}

	if Kind("looking_away").IsKnown() {
		t.Error("unknown kind reported as known")
	}
	if Kind("looking_away").Counted() {
		t.Error("unknown kind reported as counted")
	}
}

func TestFindingFieldsAreCopied(t *testing.T) {
	fields := map[string]any{"level": 41.0}
	finding := NewFinding(KindNoiseDetected, "", time.Unix(0, 0), fields)

	fields["level"] = 0.0
	if level, _ := finding.Field("level"); level != 41.0 {
		t.Fatalf("level = %v after mutating the input map, want 41", level)
	}

	returned := finding.Fields()
	returned["level"] = 1.0
	if level, _ := finding.Field("level"); level != 41.0 {
		t.Fatalf("level = %v after mutating Fields(), want 41", level)
	}
}

func TestFindingIdentity(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := NewFinding(KindNoFace, MessageNoFace, at, nil)
	second := NewFinding(KindNoFace, MessageNoFace, at, nil)

	if first.ID() == "" || first.ID() == second.ID() {
		t.Fatalf("IDs %q and %q should be distinct and non-empty", first.ID(), second.ID())
	}
	if !first.Timestamp().Equal(at) {
		t.Errorf("Timestamp() = %v, want %v", first.Timestamp(), at)
	}
	if first.Message() != MessageNoFace {
		t.Errorf("Message() = %q", first.Message())
	}
	if first.Fields() != nil {
		t.Errorf("Fields() = %v, want nil", first.Fields())
	}
	if !first.Counted() || first.Severity() != SeverityWarning {
		t.Errorf("Counted/Severity = %v/%q", first.Counted(), first.Severity())
	}
}

func TestSessionValidate(t *testing.T) {
	if err := (Session{SessionID: "s1", AuthToken: "tok"}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := (Session{AuthToken: "tok"}).Validate(); err == nil {
		t.Fatal("missing session id accepted")
	}
	if err := (Session{SessionID: "s1"}).Validate(); err == nil {
		t.Fatal("missing token accepted")
	}
}
