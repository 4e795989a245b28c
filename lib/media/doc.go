// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package media defines the capture-source contract the proctoring
// monitor samples from, plus a directory-backed implementation used by
// the agent binary and integration tests.
//
// A [Provider] hands out a [Source] through Acquire, which may block
// while the candidate is asked for camera and microphone permission.
// The caller owns the Source from then on and must Release it on every
// exit path. Release is idempotent.
//
// A [Sample] pairs one still frame with one frequency-domain audio
// snapshot: one byte per bin on a 0-255 scale, the representation
// browser audio analysers produce. [FrameDigest] fingerprints a frame
// so a finding can reference the frame it was computed from without
// shipping pixels anywhere.
package media
