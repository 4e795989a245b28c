// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry streams proctoring findings to a remote collector.
//
// A [Channel] holds one message connection per session, addressed as
// <collector>/sessions/{session_id}?token={token}. Each event travels
// as an [Envelope]:
//
//	{"type": "no_face", "question_id": "q-1", "payload": {..., "timestamp": 1767225600000}}
//
// Delivery is at most once. An event is written only while the channel
// is connected and a question is set; otherwise it is dropped and
// counted, never queued for replay. Telemetry is diagnostic, so losing
// events during an outage is acceptable.
//
// When the connection closes (or a dial fails) the channel reconnects
// with a linear backoff: attempt n waits n times the backoff step (2 s,
// 4 s, 6 s, ...) up to the reconnect limit, after which telemetry stops
// for the session. A successful open resets the attempt count. All
// reconnect timers go through an injected [clock.Clock], and a
// generation counter discards dial and close results that arrive after
// [Channel.Disconnect].
//
// Every keypress report also carries typing_speed_ms, the rounded mean
// of the last inter-keystroke gaps (see [Cadence]).
//
// The transport is abstracted by [Dialer] and [Conn]. [WebSocketDialer]
// is the production implementation; JSON envelopes travel as text
// frames and CBOR envelopes as binary frames.
package telemetry
