// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeshield/proctor/lib/clock"
)

// warningKinds are the event types the collector counts toward its own
// violation tally and answers with a warning.
var warningKinds = []string{"no_face", "multiple_faces", "tab_switch", "fullscreen_exit"}

// reviewKinds are the event types listed by the violations endpoint.
var reviewKinds = []string{
	"paste", "focus_out", "tab_switch", "no_face", "multiple_faces",
	"looking_away", "noise_detected", "fullscreen_exit",
}

// storedEvent is one received envelope.
type storedEvent struct {
	ID         string         `json:"id"`
	QuestionID string         `json:"question_id"`
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// sessionStats matches the collector's stats endpoint.
type sessionStats struct {
	TotalKeystrokes int `json:"total_keystrokes"`
	TotalPastes     int `json:"total_pastes"`
	TotalViolations int `json:"total_violations"`
}

// eventStore keeps every session's events in arrival order.
type eventStore struct {
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string][]storedEvent
}

func newEventStore(clk clock.Clock) *eventStore {
	return &eventStore{clock: clk, sessions: make(map[string][]storedEvent)}
}

// add stores an event and returns it.
func (s *eventStore) add(sessionID, questionID, eventType string, payload map[string]any) storedEvent {
	event := storedEvent{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: s.clock.Now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], event)
	return event
}

// events returns a session's events, oldest first.
func (s *eventStore) events(sessionID string) []storedEvent {
	return s.filter(sessionID, nil)
}

// violations returns a session's events of the review kinds.
func (s *eventStore) violations(sessionID string) []storedEvent {
	return s.filter(sessionID, reviewKinds)
}

func (s *eventStore) filter(sessionID string, kinds []string) []storedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []storedEvent{}
	for _, event := range s.sessions[sessionID] {
		if kinds == nil || slices.Contains(kinds, event.EventType) {
			matched = append(matched, event)
		}
	}
	return matched
}

// warningCount returns how many warning-kind events a session has.
func (s *eventStore) warningCount(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, event := range s.sessions[sessionID] {
		if slices.Contains(warningKinds, event.EventType) {
			count++
		}
	}
	return count
}

func (s *eventStore) stats(sessionID string) sessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats sessionStats
	for _, event := range s.sessions[sessionID] {
		switch {
		case event.EventType == "keypress":
			stats.TotalKeystrokes++
		case event.EventType == "paste":
			stats.TotalPastes++
		case slices.Contains(warningKinds, event.EventType), event.EventType == "looking_away":
			stats.TotalViolations++
		}
	}
	return stats
}
