// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"sync"

	"github.com/codeshield/proctor/lib/schema/integrity"
)

// Default ledger policy.
const (
	DefaultViolationLimit = 3
	DefaultHistorySize    = 10
)

// LedgerState is the ledger's position in the Active → Disqualified
// state machine. Disqualified is terminal.
type LedgerState int

const (
	Active LedgerState = iota
	Disqualified
)

func (s LedgerState) String() string {
	switch s {
	case Active:
		return "active"
	case Disqualified:
		return "disqualified"
	default:
		return "unknown"
	}
}

// Ledger counts ledger-counted findings and keeps the most recent ones.
// Safe for concurrent use.
type Ledger struct {
	limit    int
	capacity int

	// onDisqualify runs exactly once, outside mu, on the record that
	// first brings count to limit.
	onDisqualify func()

	mu      sync.Mutex
	count   int
	history []integrity.Finding // most recent first
	state   LedgerState
}

// NewLedger returns an Active ledger. Non-positive limit or capacity
// fall back to the defaults. onDisqualify may be nil.
func NewLedger(limit, capacity int, onDisqualify func()) *Ledger {
	if limit <= 0 {
		limit = DefaultViolationLimit
	}
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Ledger{
		limit:        limit,
		capacity:     capacity,
		onDisqualify: onDisqualify,
		history:      make([]integrity.Finding, 0, capacity),
	}
}

// Record accounts for finding. Telemetry-only kinds are ignored and
// return counted=false. Counted kinds increment the count and are
// prepended to the history, evicting the oldest entry beyond capacity.
// Records after disqualification are still accounted.
func (l *Ledger) Record(finding integrity.Finding) (count int, counted bool) {
	if !finding.Counted() {
		return l.Count(), false
	}

	l.mu.Lock()
	l.count++
	count = l.count

	if len(l.history) < l.capacity {
		l.history = append(l.history, integrity.Finding{})
	}
	copy(l.history[1:], l.history[:len(l.history)-1])
	l.history[0] = finding

	disqualify := l.state == Active && l.count >= l.limit
	if disqualify {
		l.state = Disqualified
	}
	l.mu.Unlock()

	if disqualify && l.onDisqualify != nil {
		l.onDisqualify()
	}
	return count, true
}

// Count returns the number of counted findings recorded so far.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Limit returns the disqualification threshold.
func (l *Ledger) Limit() int { return l.limit }

// History returns a copy of the retained findings, most recent first.
func (l *Ledger) History() []integrity.Finding {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := make([]integrity.Finding, len(l.history))
	copy(history, l.history)
	return history
}

// Recent returns up to n of the most recent findings.
func (l *Ledger) Recent(n int) []integrity.Finding {
	l.mu.Lock()
	defer l.mu.Unlock()
	n = min(n, len(l.history))
	if n <= 0 {
		return nil
	}
	recent := make([]integrity.Finding, n)
	copy(recent, l.history[:n])
	return recent
}

// State returns the ledger's state.
func (l *Ledger) State() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Disqualified reports whether the limit has been reached.
func (l *Ledger) Disqualified() bool {
	return l.State() == Disqualified
}
