// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"math"
	"time"
)

// DefaultCadenceWindow is how many inter-keystroke gaps the typing
// average covers.
const DefaultCadenceWindow = 20

// Cadence keeps the most recent inter-keystroke gaps. Not safe for
// concurrent use; the Channel guards it.
type Cadence struct {
	window int
	gaps   []time.Duration
	last   time.Time
}

// NewCadence returns a Cadence averaging over window gaps. A
// non-positive window falls back to DefaultCadenceWindow.
func NewCadence(window int) *Cadence {
	if window <= 0 {
		window = DefaultCadenceWindow
	}
	return &Cadence{window: window, gaps: make([]time.Duration, 0, window)}
}

// Observe records a keystroke at and returns the updated average in
// milliseconds. The first keystroke has no gap. Out-of-order
// timestamps count as a zero gap.
func (c *Cadence) Observe(at time.Time) int64 {
	if !c.last.IsZero() {
		gap := max(at.Sub(c.last), 0)
		if len(c.gaps) == c.window {
			copy(c.gaps, c.gaps[1:])
			c.gaps = c.gaps[:len(c.gaps)-1]
		}
		c.gaps = append(c.gaps, gap)
	}
	c.last = at
	return c.Average()
}

// Average returns the mean gap in milliseconds, rounded, or 0 with no
// gaps recorded.
func (c *Cadence) Average() int64 {
	if len(c.gaps) == 0 {
		return 0
	}
	var total time.Duration
	for _, gap := range c.gaps {
		total += gap
	}
	mean := float64(total) / float64(len(c.gaps)) / float64(time.Millisecond)
	return int64(math.Round(mean))
}

// Len returns the number of gaps held.
func (c *Cadence) Len() int { return len(c.gaps) }
