// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/media"
)

// DefaultSampleInterval is the period between snapshots.
const DefaultSampleInterval = 3 * time.Second

// errReleased is returned by Acquire when Release won the race.
var errReleased = errors.New("sampler released")

// Sampler owns one media source for a session: it acquires it, takes
// a snapshot every interval, and releases it.
type Sampler struct {
	clock    clock.Clock
	provider media.Provider
	interval time.Duration

	mu       sync.Mutex
	source   media.Source
	released bool
}

// NewSampler returns a Sampler. A non-positive interval falls back to
// DefaultSampleInterval.
func NewSampler(clk clock.Clock, provider media.Provider, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{clock: clk, provider: provider, interval: interval}
}

// Acquire blocks until the provider grants or refuses the media source.
// A source granted after Release has already run is released at once.
func (s *Sampler) Acquire(ctx context.Context) error {
	source, err := s.provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring media: %w", err)
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		_ = source.Release()
		return errReleased
	}
	s.source = source
	s.mu.Unlock()
	return nil
}

// Run takes a snapshot every interval and passes it to onSample until
// ctx is done. A failed snapshot is skipped. The ticker is stopped
// before Run returns.
func (s *Sampler) Run(ctx context.Context, onSample func(media.Sample, time.Time)) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source == nil {
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			sample, err := source.Snapshot()
			if err != nil {
				continue
			}
			onSample(sample, at)
		}
	}
}

// Tracks reports which tracks the acquired source carries. Zero before
// acquisition.
func (s *Sampler) Tracks() media.Tracks {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return media.Tracks{}
	}
	return s.source.Tracks()
}

// Release releases the source. Safe to call more than once and before
// Acquire returns.
func (s *Sampler) Release() error {
	s.mu.Lock()
	source := s.source
	s.source = nil
	s.released = true
	s.mu.Unlock()

	if source == nil {
		return nil
	}
	return source.Release()
}
