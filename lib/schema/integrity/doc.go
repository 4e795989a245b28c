// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrity defines the observation types shared by the
// proctoring core: [Finding], its [Kind] and derived [Severity], and
// the exam [Session] identifiers.
//
// Kinds split into two groups. Ledger-counted kinds ([Kind.Counted])
// increment the violation ledger and can disqualify a candidate.
// Telemetry-only kinds (noise, paste, keypress, focus changes) are
// reported to the collector for later human review and never
// penalize on their own.
//
// This package depends on no other proctor packages.
package integrity
