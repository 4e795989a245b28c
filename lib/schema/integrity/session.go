// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import "errors"

// Session identifies one exam attempt. The exam flow creates it at
// exam start and hands it to the monitor. QuestionID is the question
// shown first; later navigation goes through Monitor.SetQuestion.
type Session struct {
	SessionID  string
	QuestionID string
	AuthToken  string
}

// Validate checks that the identifiers needed to reach the collector
// are present.
func (s Session) Validate() error {
	if s.SessionID == "" {
		return errors.New("session: session id is required")
	}
	if s.AuthToken == "" {
		return errors.New("session: auth token is required")
	}
	return nil
}
