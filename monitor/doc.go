// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor is the per-session integrity-monitoring context.
//
// A [Monitor] owns everything a proctored session runs locally:
//
//   - a [Sampler] that acquires the camera and microphone once and
//     takes one snapshot per sampling interval (3 s by default),
//   - the heuristic classifier that turns each snapshot into findings,
//   - a [Watcher] that turns environment events (visibility, fullscreen,
//     context menu, key combinations, editor growth) into findings and
//     tells the host whether to suppress the event's default action,
//   - a [Ledger] that counts violations and disqualifies the candidate
//     when the count reaches the limit.
//
// Every finding from either path goes through one dispatch point that
// records it in the ledger and hands it to the telemetry [Reporter].
// The ledger never drops accounting; the reporter may drop events while
// it is disconnected.
//
// The sampling loop runs on its own goroutine while environment events
// arrive on the host's goroutines. The ledger and the reporter each
// serialize their own state, so the two paths may interleave freely.
//
// [Monitor.Stop] is the single teardown path. It stops the sampling
// timer, cancels any pending telemetry reconnect, releases the media
// source, and closes the transport, in that order. It is synchronous
// and idempotent. Reaching the violation limit runs it from the
// monitor's hook goroutine, where the host's OnWarning and
// OnDisqualified hooks also run and may call it again.
package monitor
