// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/heuristic"
	"github.com/codeshield/proctor/lib/media"
	"github.com/codeshield/proctor/lib/schema/integrity"
	"github.com/codeshield/proctor/telemetry"
)

// RecentViolations is how many ledger entries Status carries.
const RecentViolations = 3

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("monitor: already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("monitor: stopped")
)

// Reporter is the telemetry side of the monitor. *telemetry.Channel
// implements it.
type Reporter interface {
	Connect(ctx context.Context, sessionID, token string) error
	SetQuestion(questionID string)
	Report(finding integrity.Finding) bool
	State() telemetry.State
	CancelReconnect()
	Disconnect()
}

// Config configures a Monitor.
type Config struct {
	// Media provides the camera and microphone. Required.
	Media media.Provider

	// Telemetry receives every finding. Required.
	Telemetry Reporter

	// Classifier turns snapshots into findings. Nil uses the skin-tone
	// and spectrum heuristics with default thresholds.
	Classifier *heuristic.Classifier

	// SampleInterval, ViolationLimit, and HistorySize fall back to the
	// package defaults when zero.
	SampleInterval time.Duration
	ViolationLimit int
	HistorySize    int

	// InitialCodeLength seeds the watcher's editor length.
	InitialCodeLength int

	// OnWarning runs for every ledger-counted finding with the count
	// after recording it. OnDisqualified runs once, after the warning
	// that reached the limit; the monitor has already stopped by then.
	// Both run in order on the monitor's hook goroutine and may call
	// Stop.
	OnDisqualified func()
	OnWarning      func(finding integrity.Finding, count, limit int)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Status is a snapshot of the session for the host's monitoring panel.
type Status struct {
	CameraReady     bool
	MicrophoneReady bool
	Fullscreen      bool
	Face            heuristic.FaceStatus
	NoiseLevel      float64

	Violations   int
	Limit        int
	Disqualified bool

	// Recent holds up to RecentViolations findings, most recent first.
	Recent []integrity.Finding

	Channel telemetry.State
}

// Monitor is one session's integrity-monitoring context.
type Monitor struct {
	clock      clock.Clock
	logger     *slog.Logger
	classifier *heuristic.Classifier
	telemetry  Reporter
	sampler    *Sampler
	watcher    *Watcher
	ledger     *Ledger

	onDisqualified func()
	onWarning      func(integrity.Finding, int, int)

	// disqualifyDue is set by the ledger callback and consumed by the
	// Dispatch that recorded the limit-reaching finding.
	disqualifyDue atomic.Bool
	stopped       chan struct{}
	stopOnce      sync.Once

	// hooks is drained by runHooks; hookSignal wakes it.
	hookMu      sync.Mutex
	hooks       []hookCall
	hooksClosed bool
	hookSignal  chan struct{}

	mu         sync.Mutex
	started    bool
	halted     bool
	sessionID  string
	cancel     context.CancelFunc
	loopDone   chan struct{}
	face       heuristic.FaceStatus
	noiseLevel float64
}

// New returns a Monitor ready to Start.
func New(config Config) (*Monitor, error) {
	if config.Media == nil {
		return nil, errors.New("monitor: media provider is required")
	}
	if config.Telemetry == nil {
		return nil, errors.New("monitor: telemetry reporter is required")
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := config.Classifier
	if classifier == nil {
		classifier = heuristic.NewClassifier(heuristic.DefaultMinSkinRatio, heuristic.DefaultMaxSkinRatio,
			heuristic.DefaultNoiseThreshold)
	}

	m := &Monitor{
		clock:          clk,
		logger:         logger,
		classifier:     classifier,
		telemetry:      config.Telemetry,
		sampler:        NewSampler(clk, config.Media, config.SampleInterval),
		watcher:        NewWatcher(clk, config.InitialCodeLength),
		onDisqualified: config.OnDisqualified,
		onWarning:      config.OnWarning,
		stopped:        make(chan struct{}),
		hookSignal:     make(chan struct{}, 1),
	}
	m.ledger = NewLedger(config.ViolationLimit, config.HistorySize, func() { m.disqualifyDue.Store(true) })
	return m, nil
}

// Start connects telemetry, sets the session's question, and starts the
// sampling loop. Media acquisition happens on the loop's goroutine, so
// Start does not wait for the permission prompt.
func (m *Monitor) Start(ctx context.Context, session integrity.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	switch {
	case m.halted:
		m.mu.Unlock()
		return ErrStopped
	case m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.sessionID = session.SessionID
	m.mu.Unlock()

	if err := m.telemetry.Connect(ctx, session.SessionID, session.AuthToken); err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return fmt.Errorf("connecting telemetry: %w", err)
	}
	if session.QuestionID != "" {
		m.telemetry.SetQuestion(session.QuestionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halted {
		// Stop ran while telemetry was connecting and did not see a
		// loop to wait for.
		m.telemetry.Disconnect()
		return ErrStopped
	}
	loopContext, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.loopDone = make(chan struct{})

	go m.runHooks()
	go m.run(loopContext, m.loopDone)

	m.logger.Info("monitoring started",
		"session_id", session.SessionID,
		"question_id", session.QuestionID,
	)
	return nil
}

// run acquires media and then samples until ctx is cancelled.
func (m *Monitor) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	if err := m.sampler.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("media acquisition failed",
			"session_id", m.session(),
			"error", err,
		)
		m.Dispatch(integrity.NewFinding(integrity.KindCameraDenied, integrity.MessageCameraDenied,
			m.clock.Now(), nil))
		return
	}

	tracks := m.sampler.Tracks()
	m.logger.Info("media acquired",
		"session_id", m.session(),
		"video", tracks.Video,
		"audio", tracks.Audio,
	)
	m.sampler.Run(ctx, m.classify)
}

// classify runs the heuristics on one snapshot. A panic in a detector
// costs the tick, not the session.
func (m *Monitor) classify(sample media.Sample, at time.Time) {
	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("classifier panicked",
				"session_id", m.session(),
				"panic", recovered,
			)
		}
	}()

	result := m.classifier.Classify(sample, at)

	m.mu.Lock()
	if result.Face != heuristic.FaceUnknown {
		m.face = result.Face
	}
	m.noiseLevel = result.NoiseLevel
	m.mu.Unlock()

	for _, finding := range result.Findings {
		m.Dispatch(finding)
	}
}

// Dispatch records finding in the ledger and reports it to telemetry.
// Both paths see every finding; telemetry may drop it. Counted findings
// queue the warning hook, and the finding that reaches the limit also
// queues the disqualification, which stops the monitor.
func (m *Monitor) Dispatch(finding integrity.Finding) {
	count, counted := m.ledger.Record(finding)
	m.telemetry.Report(finding)
	if !counted {
		return
	}
	m.logger.Info("violation recorded",
		"session_id", m.session(),
		"kind", finding.Kind(),
		"count", count,
		"limit", m.ledger.Limit(),
	)
	m.queueHook(hookCall{finding: finding, count: count, limit: m.ledger.Limit()})
	if m.disqualifyDue.CompareAndSwap(true, false) {
		m.queueHook(hookCall{disqualify: true})
	}
}

// HandleEvent classifies an environment event, dispatches the finding
// if there is one, and returns what the host should do with the event.
func (m *Monitor) HandleEvent(event Event) Action {
	finding, action, ok := m.watcher.Interpret(event)
	if ok {
		m.Dispatch(finding)
	}
	return action
}

// SetQuestion switches the question stamped on telemetry.
func (m *Monitor) SetQuestion(questionID string) {
	m.telemetry.SetQuestion(questionID)
}

// ResetEditor sets the editor length the watcher measures growth
// from, for when the host loads a different question's code.
func (m *Monitor) ResetEditor(codeLength int) {
	m.watcher.ResetEditor(codeLength)
}

// hookCall is one queued OnWarning or disqualification.
type hookCall struct {
	finding    integrity.Finding
	count      int
	limit      int
	disqualify bool
}

// queueHook never blocks, so the sampling loop and HandleEvent callers
// stay free to be stopped from inside a hook.
func (m *Monitor) queueHook(call hookCall) {
	m.hookMu.Lock()
	if m.hooksClosed {
		m.hookMu.Unlock()
		return
	}
	m.hooks = append(m.hooks, call)
	m.hookMu.Unlock()

	select {
	case m.hookSignal <- struct{}{}:
	default:
	}
}

// runHooks runs queued hooks in order until the monitor stops. Hooks
// queued before Stop still run.
func (m *Monitor) runHooks() {
	for {
		select {
		case <-m.hookSignal:
			m.drainHooks()
		case <-m.stopped:
			m.drainHooks()
			m.hookMu.Lock()
			m.hooksClosed = true
			m.hooks = nil
			m.hookMu.Unlock()
			return
		}
	}
}

func (m *Monitor) drainHooks() {
	for {
		m.hookMu.Lock()
		if len(m.hooks) == 0 {
			m.hookMu.Unlock()
			return
		}
		call := m.hooks[0]
		m.hooks = m.hooks[1:]
		m.hookMu.Unlock()
		m.runHook(call)
	}
}

func (m *Monitor) runHook(call hookCall) {
	if !call.disqualify {
		if m.onWarning != nil {
			m.onWarning(call.finding, call.count, call.limit)
		}
		return
	}
	m.logger.Warn("session disqualified",
		"session_id", m.session(),
		"violations", m.ledger.Count(),
	)
	m.Stop()
	if m.onDisqualified != nil {
		m.onDisqualified()
	}
}

// Status returns a snapshot of the session.
func (m *Monitor) Status() Status {
	tracks := m.sampler.Tracks()

	m.mu.Lock()
	face, noiseLevel := m.face, m.noiseLevel
	m.mu.Unlock()

	return Status{
		CameraReady:     tracks.Video,
		MicrophoneReady: tracks.Audio,
		Fullscreen:      m.watcher.Fullscreen(),
		Face:            face,
		NoiseLevel:      noiseLevel,
		Violations:      m.ledger.Count(),
		Limit:           m.ledger.Limit(),
		Disqualified:    m.ledger.Disqualified(),
		Recent:          m.ledger.Recent(RecentViolations),
		Channel:         m.telemetry.State(),
	}
}

func (m *Monitor) session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Ledger returns the session's violation ledger.
func (m *Monitor) Ledger() *Ledger { return m.ledger }

// Stop tears the session down: it stops the sampling timer and waits
// for the loop, cancels any pending telemetry reconnect, releases the
// media source, and closes the transport. Later calls do nothing.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.halted = true
		cancel, loopDone, sessionID := m.cancel, m.loopDone, m.sessionID
		m.mu.Unlock()

		if cancel != nil {
			cancel()
			<-loopDone
		}
		m.telemetry.CancelReconnect()
		if err := m.sampler.Release(); err != nil {
			m.logger.Warn("releasing media", "session_id", sessionID, "error", err)
		}
		m.telemetry.Disconnect()
		close(m.stopped)

		m.logger.Info("monitoring stopped",
			"session_id", sessionID,
			"violations", m.ledger.Count(),
		)
	})
}
