// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package heuristic turns one media sample into zero or more findings.
//
// Two judgments run per sample, each stateless:
//
//   - Face presence: [SkinToneDetector] counts pixels matching a fixed
//     skin-tone color rule and compares the matching fraction against
//     a lower bound (nobody in frame) and an upper bound (more than
//     one person in frame).
//   - Ambient noise: [SpectrumMeter] averages the audio frequency
//     snapshot and flags it when the mean exceeds a threshold.
//
// Both are deliberately simple so that a reviewer can reproduce any
// finding by hand. They sit behind [FaceDetector] and [NoiseDetector]
// so a better detector can replace either without touching the ledger
// or the telemetry channel.
//
// Degenerate input (nil or zero-size frame, empty spectrum) yields no
// finding.
package heuristic
