// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"image"
)

// DefaultSpectrumBins is the number of frequency bins requested per
// audio snapshot.
const DefaultSpectrumBins = 256

var (
	// ErrPermissionDenied is returned by Acquire when the candidate
	// (or the platform) refuses camera or microphone access.
	ErrPermissionDenied = errors.New("media: permission denied")

	// ErrUnavailable is returned when a device or snapshot cannot be
	// produced, including Snapshot after Release.
	ErrUnavailable = errors.New("media: source unavailable")
)

// Sample is one capture from the active sources. Frame is nil when no
// video track is available; Spectrum is empty when no audio track is
// available.
type Sample struct {
	Frame    image.Image
	Spectrum []byte
}

// Tracks reports which capture tracks a Source carries.
type Tracks struct {
	Video bool
	Audio bool
}

// Provider acquires capture sources.
type Provider interface {
	// Acquire blocks until the sources are granted, refused, or ctx
	// is done. Errors wrap ErrPermissionDenied or ErrUnavailable when
	// they have those causes.
	Acquire(ctx context.Context) (Source, error)
}

// Source is an acquired set of capture tracks.
type Source interface {
	// Snapshot captures the current frame and audio spectrum.
	Snapshot() (Sample, error)

	// Tracks reports which tracks were granted.
	Tracks() Tracks

	// Release stops every track. Safe to call more than once.
	Release() error
}
