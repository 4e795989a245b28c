// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"github.com/codeshield/proctor/lib/schema/integrity"
)

// Envelope is one event on the wire.
type Envelope struct {
	Type       string         `json:"type"`
	QuestionID string         `json:"question_id"`
	Payload    map[string]any `json:"payload"`
}

// Ack is a collector reply. The channel only logs acks.
type Ack struct {
	Status         string `json:"status"`
	Type           string `json:"type,omitempty"`
	Message        string `json:"message,omitempty"`
	ViolationCount int    `json:"violation_count,omitempty"`
}

// findingPayload flattens a finding into an envelope payload: its
// extra fields, the message, severity, id, and the epoch-millisecond
// timestamp.
func findingPayload(finding integrity.Finding) map[string]any {
	payload := finding.Fields()
	if payload == nil {
		payload = make(map[string]any, 4)
	}
	if message := finding.Message(); message != "" {
		payload["message"] = message
	}
	payload["severity"] = string(finding.Severity())
	payload["finding_id"] = finding.ID()
	payload["timestamp"] = finding.Timestamp().UnixMilli()
	return payload
}
