// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/codeshield/proctor/monitor"
)

// kindSetQuestion is the control line that switches questions. It is
// not an environment event and produces no finding.
const kindSetQuestion monitor.EventKind = "set_question"

// eventHandler is the part of *monitor.Monitor the event pump drives.
type eventHandler interface {
	HandleEvent(monitor.Event) monitor.Action
	SetQuestion(questionID string)
	ResetEditor(codeLength int)
}

// inputLine is one line of the event stream.
type inputLine struct {
	monitor.Event
	QuestionID string `json:"question_id,omitempty"`
}

// outputLine is the agent's answer to one input line.
type outputLine struct {
	Kind     monitor.EventKind `json:"kind,omitempty"`
	Suppress bool              `json:"suppress"`
	Error    string            `json:"error,omitempty"`
}

// pumpEvents feeds each JSON line from input to handler and writes one
// answer line per event to output. Blank lines are skipped; malformed
// lines get an error answer. It returns nil at end of input.
func pumpEvents(ctx context.Context, input io.Reader, output io.Writer, handler eventHandler) error {
	scanner := bufio.NewScanner(input)
	encoder := json.NewEncoder(output)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var line inputLine
		if err := json.Unmarshal(data, &line); err != nil {
			if err := encoder.Encode(outputLine{Error: fmt.Sprintf("malformed event: %v", err)}); err != nil {
				return err
			}
			continue
		}

		answer := outputLine{Kind: line.Kind}
		switch line.Kind {
		case "":
			answer.Error = "event has no kind"
		case kindSetQuestion:
			if line.QuestionID == "" {
				answer.Error = "set_question needs question_id"
				break
			}
			handler.SetQuestion(line.QuestionID)
			handler.ResetEditor(line.CodeLength)
		default:
			answer.Suppress = handler.HandleEvent(line.Event).Suppress
		}
		if err := encoder.Encode(answer); err != nil {
			return err
		}
	}
	return scanner.Err()
}
