// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeshield/proctor/lib/codec"
	"github.com/codeshield/proctor/lib/netutil"
	"github.com/codeshield/proctor/lib/schema/integrity"
	"github.com/codeshield/proctor/telemetry"
)

// closeUnauthorized is the close code for a missing or wrong token.
const closeUnauthorized = 4001

// unrecognizedType is the acknowledgement message for an envelope
// whose type is not an integrity kind.
const unrecognizedType = "unrecognized event type"

// routePrefix matches the path of the agent's default collector URL.
const routePrefix = "/api/monitoring"

// collector serves the monitoring websocket and the review endpoints.
type collector struct {
	store   *eventStore
	archive *archive // nil when not archiving
	token   string   // empty accepts any non-empty token
	logger  *slog.Logger

	upgrader websocket.Upgrader
}

func (c *collector) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+routePrefix+"/sessions/{id}", c.handleStream)
	mux.HandleFunc("GET "+routePrefix+"/sessions/{id}/events", c.handleEvents)
	mux.HandleFunc("GET "+routePrefix+"/sessions/{id}/violations", c.handleViolations)
	mux.HandleFunc("GET "+routePrefix+"/sessions/{id}/stats", c.handleStats)
	return mux
}

func (c *collector) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Debug("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	token := r.URL.Query().Get("token")
	if token == "" || (c.token != "" && token != c.token) {
		c.logger.Info("rejecting session", "session_id", sessionID, "reason", "bad token")
		message := websocket.FormatCloseMessage(closeUnauthorized, "unauthorized")
		conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		return
	}

	c.logger.Info("session connected", "session_id", sessionID, "remote", r.RemoteAddr)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if netutil.IsExpectedCloseError(err) {
				c.logger.Info("session disconnected", "session_id", sessionID)
			} else {
				c.logger.Warn("session read failed", "session_id", sessionID, "error", err)
			}
			return
		}

		encoding := codec.JSON
		if messageType == websocket.BinaryMessage {
			encoding = codec.CBOR
		}
		replies := c.receive(sessionID, encoding, data)
		for _, reply := range replies {
			encoded, err := encoding.Marshal(reply)
			if err != nil {
				c.logger.Error("encoding reply", "error", err)
				return
			}
			if err := conn.WriteMessage(messageType, encoded); err != nil {
				c.logger.Debug("writing reply", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

// receive stores one envelope and returns the replies for it: a
// warning for warning kinds, then the acknowledgement. Types the agent
// never produces are stored but flagged in the acknowledgement.
func (c *collector) receive(sessionID string, encoding codec.Encoding, data []byte) []telemetry.Ack {
	var envelope telemetry.Envelope
	if err := encoding.Unmarshal(data, &envelope); err != nil {
		c.logger.Warn("undecodable envelope", "session_id", sessionID, "bytes", len(data), "error", err)
		return []telemetry.Ack{{Status: "error", Message: "undecodable envelope"}}
	}

	ack := telemetry.Ack{Status: "received", Type: envelope.Type}
	var replies []telemetry.Ack
	if envelope.Type != "" && envelope.QuestionID != "" {
		if !integrity.Kind(envelope.Type).IsKnown() {
			c.logger.Warn("unrecognized event type", "session_id", sessionID, "type", envelope.Type)
			ack.Message = unrecognizedType
		}
		payload := envelope.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		event := c.store.add(sessionID, envelope.QuestionID, envelope.Type, payload)
		if c.archive != nil {
			if err := c.archive.append(sessionID, event); err != nil {
				c.logger.Error("archiving event", "session_id", sessionID, "error", err)
			}
		}
		c.logger.Debug("event stored", "session_id", sessionID, "type", envelope.Type)

		if isWarningKind(envelope.Type) {
			replies = append(replies, telemetry.Ack{
				Status:         "warning",
				Type:           envelope.Type,
				ViolationCount: c.store.warningCount(sessionID),
				Message:        fmt.Sprintf("Violation detected: %s", envelope.Type),
			})
		}
	}
	return append(replies, ack)
}

func isWarningKind(eventType string) bool {
	return slices.Contains(warningKinds, eventType)
}

func (c *collector) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.store.events(r.PathValue("id")))
}

func (c *collector) handleViolations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.store.violations(r.PathValue("id")))
}

func (c *collector) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.store.stats(r.PathValue("id")))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
