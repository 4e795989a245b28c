// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/heuristic"
	"github.com/codeshield/proctor/lib/media"
	"github.com/codeshield/proctor/lib/schema/integrity"
	"github.com/codeshield/proctor/lib/testutil"
	"github.com/codeshield/proctor/telemetry"
)

const waitTimeout = 5 * time.Second

// eventLog records teardown steps across fakes in call order.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

type fakeReporter struct {
	clock   *clock.FakeClock
	log     *eventLog
	reports chan integrity.Finding

	mu         sync.Mutex
	questionID string
	state      telemetry.State
}

func newFakeReporter(fakeClock *clock.FakeClock, log *eventLog) *fakeReporter {
	return &fakeReporter{clock: fakeClock, log: log, reports: make(chan integrity.Finding, 64)}
}

func (r *fakeReporter) Connect(ctx context.Context, sessionID, token string) error {
	if sessionID == "" || token == "" {
		return telemetry.ErrInvalidSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = telemetry.Connected
	return nil
}

func (r *fakeReporter) SetQuestion(questionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questionID = questionID
}

func (r *fakeReporter) question() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questionID
}

func (r *fakeReporter) Report(finding integrity.Finding) bool {
	r.reports <- finding
	return true
}

func (r *fakeReporter) State() telemetry.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CancelReconnect records how many clock timers are live, which shows
// whether the sampling ticker was already stopped.
func (r *fakeReporter) CancelReconnect() {
	r.log.add(fmt.Sprintf("cancel_reconnect timers=%d", r.clock.PendingCount()))
}

func (r *fakeReporter) Disconnect() {
	r.mu.Lock()
	r.state = telemetry.Disconnected
	r.mu.Unlock()
	r.log.add("disconnect")
}

type fakeSource struct {
	log         *eventLog
	sample      media.Sample
	snapshotErr error
	snapshots   atomic.Int32
	released    atomic.Bool
}

func (s *fakeSource) Snapshot() (media.Sample, error) {
	s.snapshots.Add(1)
	if s.snapshotErr != nil {
		return media.Sample{}, s.snapshotErr
	}
	return s.sample, nil
}

func (s *fakeSource) Tracks() media.Tracks { return media.Tracks{Video: true, Audio: true} }

func (s *fakeSource) Release() error {
	if s.released.CompareAndSwap(false, true) {
		s.log.add("release")
	}
	return nil
}

type acquireMode int

const (
	grantImmediately acquireMode = iota
	denyImmediately
	blockUntilCancelled
	grantOnCancel
)

type fakeProvider struct {
	mode    acquireMode
	source  *fakeSource
	entered chan struct{}
}

func (p *fakeProvider) Acquire(ctx context.Context) (media.Source, error) {
	close(p.entered)
	switch p.mode {
	case denyImmediately:
		return nil, media.ErrPermissionDenied
	case blockUntilCancelled:
		<-ctx.Done()
		return nil, ctx.Err()
	case grantOnCancel:
		<-ctx.Done()
		return p.source, nil
	}
	return p.source, nil
}

func solidFrame(c color.RGBA) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			frame.SetRGBA(x, y, c)
		}
	}
	return frame
}

// faceFrame has one skin pixel row out of eight: a 12.5% skin ratio.
func faceFrame() *image.RGBA {
	frame := solidFrame(color.RGBA{A: 255})
	for x := range 8 {
		frame.SetRGBA(x, 0, skin)
	}
	return frame
}

var (
	skin  = color.RGBA{R: 200, G: 120, B: 90, A: 255}
	black = color.RGBA{A: 255}
)

func spectrum(level byte) []byte {
	bins := make([]byte, 256)
	for i := range bins {
		bins[i] = level
	}
	return bins
}

type harness struct {
	clock    *clock.FakeClock
	log      *eventLog
	reporter *fakeReporter
	provider *fakeProvider
	monitor  *Monitor

	disqualifiedCalls atomic.Int32
	disqualified      chan struct{}
	warnings          chan int
}

func newHarness(t *testing.T, mode acquireMode, sample media.Sample, configure func(*Config)) *harness {
	t.Helper()
	h := &harness{
		clock:        clock.Fake(epoch),
		log:          &eventLog{},
		disqualified: make(chan struct{}),
		warnings:     make(chan int, 64),
	}
	h.reporter = newFakeReporter(h.clock, h.log)
	h.provider = &fakeProvider{
		mode:    mode,
		source:  &fakeSource{log: h.log, sample: sample},
		entered: make(chan struct{}),
	}

	config := Config{
		Media:     h.provider,
		Telemetry: h.reporter,
		Clock:     h.clock,
		OnDisqualified: func() {
			if h.disqualifiedCalls.Add(1) == 1 {
				close(h.disqualified)
			}
		},
		OnWarning: func(finding integrity.Finding, count, limit int) {
			h.warnings <- count
		},
	}
	if configure != nil {
		configure(&config)
	}

	monitor, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.monitor = monitor
	t.Cleanup(monitor.Stop)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	err := h.monitor.Start(context.Background(), integrity.Session{
		SessionID:  "s-1",
		QuestionID: "q-1",
		AuthToken:  "tok",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// tick waits for the sampling ticker and advances one interval.
func (h *harness) tick() {
	h.clock.WaitForTimers(1)
	h.clock.Advance(DefaultSampleInterval)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Telemetry: &fakeReporter{}}); err == nil {
		t.Error("New accepted a nil media provider")
	}
	if _, err := New(Config{Media: &fakeProvider{}}); err == nil {
		t.Error("New accepted a nil reporter")
	}
}

func TestMonitorNoFaceTick(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: solidFrame(black), Spectrum: spectrum(10)}, nil)
	h.start(t)

	if h.reporter.question() != "q-1" {
		t.Errorf("question = %q, want q-1", h.reporter.question())
	}

	h.tick()
	finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout, "no_face report")
	if finding.Kind() != integrity.KindNoFace || finding.Message() != integrity.MessageNoFace {
		t.Fatalf("reported %s %q", finding.Kind(), finding.Message())
	}
	if !finding.Timestamp().Equal(epoch.Add(DefaultSampleInterval)) {
		t.Errorf("timestamp = %v, want the tick time", finding.Timestamp())
	}
	if digest, _ := finding.Field("frame_digest"); digest == "" {
		t.Error("face finding has no frame_digest")
	}

	if got := testutil.RequireReceive(t, h.warnings, waitTimeout, "warning hook"); got != 1 {
		t.Errorf("OnWarning count = %d, want 1", got)
	}
	status := h.monitor.Status()
	if status.Face != heuristic.FaceAbsent || status.Violations != 1 || status.Limit != 3 {
		t.Errorf("status = %+v", status)
	}
	if len(status.Recent) != 1 || status.Recent[0].ID() != finding.ID() {
		t.Errorf("Recent = %v", status.Recent)
	}
}

func TestMonitorMultipleFacesTick(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: solidFrame(skin), Spectrum: spectrum(10)}, nil)
	h.start(t)

	h.tick()
	finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout, "multiple_faces report")
	if finding.Kind() != integrity.KindMultipleFaces {
		t.Fatalf("reported %s", finding.Kind())
	}
	if h.monitor.Status().Face != heuristic.FaceMultiple {
		t.Errorf("face status = %s", h.monitor.Status().Face)
	}
}

func TestMonitorNoiseIsTelemetryOnly(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: faceFrame(), Spectrum: spectrum(41)}, nil)
	h.start(t)

	h.tick()
	finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout, "noise report")
	if finding.Kind() != integrity.KindNoiseDetected {
		t.Fatalf("reported %s, want noise_detected", finding.Kind())
	}
	if level, _ := finding.Field("level"); level != float64(41) {
		t.Errorf("level = %v, want 41", level)
	}
	status := h.monitor.Status()
	if status.Violations != 0 {
		t.Errorf("noise counted toward the ledger: %d", status.Violations)
	}
	if status.Face != heuristic.FacePresent || status.NoiseLevel != 41 {
		t.Errorf("status = %+v", status)
	}
}

func TestMonitorSkipsFailedSnapshots(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: solidFrame(black)}, nil)
	h.provider.source.snapshotErr = errors.New("frame not ready")
	h.start(t)

	for want := int32(1); want <= 2; want++ {
		h.tick()
		testutil.Eventually(t, waitTimeout, func() bool { return h.provider.source.snapshots.Load() == want },
			"snapshot %d", want)
	}
	if len(h.reporter.reports) != 0 {
		t.Errorf("%d findings from failed snapshots", len(h.reporter.reports))
	}
}

func TestMonitorCameraDenied(t *testing.T) {
	h := newHarness(t, denyImmediately, media.Sample{}, nil)
	h.start(t)

	finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout, "camera_denied report")
	if finding.Kind() != integrity.KindCameraDenied || finding.Message() != integrity.MessageCameraDenied {
		t.Fatalf("reported %s %q", finding.Kind(), finding.Message())
	}

	h.monitor.Stop()
	if h.monitor.Ledger().Count() != 1 {
		t.Errorf("ledger count = %d, want 1", h.monitor.Ledger().Count())
	}
	if n := len(h.reporter.reports); n != 0 {
		t.Errorf("%d extra reports after camera_denied", n)
	}
	if h.provider.source.snapshots.Load() != 0 {
		t.Error("sampling ran after acquisition failed")
	}
	status := h.monitor.Status()
	if status.CameraReady || status.MicrophoneReady {
		t.Errorf("status reports ready media after denial: %+v", status)
	}
}

func TestMonitorTeardownOrder(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: faceFrame(), Spectrum: spectrum(0)}, nil)
	h.start(t)
	h.clock.WaitForTimers(1)
	testutil.Eventually(t, waitTimeout, func() bool { return h.monitor.Status().CameraReady }, "media ready")

	h.monitor.Stop()
	h.monitor.Stop()

	want := []string{"cancel_reconnect timers=0", "release", "disconnect"}
	if got := h.log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("teardown = %v, want %v", got, want)
	}
	if !h.provider.source.released.Load() {
		t.Error("media not released")
	}
}

func TestMonitorStopDuringAcquisition(t *testing.T) {
	h := newHarness(t, blockUntilCancelled, media.Sample{}, nil)
	h.start(t)
	testutil.RequireClosed(t, h.provider.entered, waitTimeout, "acquisition started")

	h.monitor.Stop()

	if n := len(h.reporter.reports); n != 0 {
		t.Errorf("cancelled acquisition reported %d findings", n)
	}
	if got := h.log.snapshot(); !slices.Equal(got, []string{"cancel_reconnect timers=0", "disconnect"}) {
		t.Errorf("teardown = %v", got)
	}
}

func TestMonitorReleasesSourceGrantedDuringStop(t *testing.T) {
	h := newHarness(t, grantOnCancel, media.Sample{}, nil)
	h.start(t)
	testutil.RequireClosed(t, h.provider.entered, waitTimeout, "acquisition started")

	h.monitor.Stop()

	if !h.provider.source.released.Load() {
		t.Fatal("source granted while stopping was never released")
	}
	want := []string{"cancel_reconnect timers=0", "release", "disconnect"}
	if got := h.log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("teardown = %v, want %v", got, want)
	}
}

func TestMonitorDisqualification(t *testing.T) {
	var h *harness
	h = newHarness(t, blockUntilCancelled, media.Sample{}, func(config *Config) {
		config.OnDisqualified = func() {
			if h.disqualifiedCalls.Add(1) == 1 {
				// The host ends the session from inside the hook.
				h.monitor.Stop()
				close(h.disqualified)
			}
		}
	})
	h.start(t)

	events := []Event{
		{Kind: EventContextMenu},
		{Kind: EventEditorChange, CodeLength: 200}, // paste, not counted
		{Kind: EventVisibilityHidden, URL: "https://exam"},
		{Kind: EventKeyDown, Key: "c", Ctrl: true},
	}
	for _, event := range events {
		h.monitor.HandleEvent(event)
	}

	testutil.RequireClosed(t, h.disqualified, waitTimeout, "disqualification hook")
	for want := 1; want <= 3; want++ {
		if got := testutil.RequireReceive(t, h.warnings, waitTimeout, "warning %d", want); got != want {
			t.Errorf("warning count = %d, want %d", got, want)
		}
	}

	// Records after disqualification are still accounted.
	h.monitor.HandleEvent(Event{Kind: EventFullscreenExit})
	if h.monitor.Ledger().Count() != 4 {
		t.Errorf("ledger count = %d, want 4", h.monitor.Ledger().Count())
	}
	if !h.monitor.Status().Disqualified {
		t.Error("status not disqualified")
	}
	if calls := h.disqualifiedCalls.Load(); calls != 1 {
		t.Errorf("OnDisqualified ran %d times, want 1", calls)
	}
	if got := h.log.snapshot(); !slices.Contains(got, "disconnect") {
		t.Errorf("Stop from the hook did not tear down: %v", got)
	}
}

func TestMonitorDisqualificationTearsDownWithoutHook(t *testing.T) {
	h := newHarness(t, grantImmediately, media.Sample{Frame: faceFrame(), Spectrum: spectrum(0)},
		func(config *Config) { config.OnDisqualified = nil })
	h.start(t)
	h.tick()
	source := h.provider.source
	testutil.Eventually(t, waitTimeout, func() bool { return source.snapshots.Load() == 1 }, "first snapshot")

	for range 3 {
		h.monitor.HandleEvent(Event{Kind: EventContextMenu})
	}
	testutil.Eventually(t, waitTimeout, func() bool { return slices.Contains(h.log.snapshot(), "disconnect") },
		"disqualification never tore the session down")

	want := []string{"cancel_reconnect timers=0", "release", "disconnect"}
	if got := h.log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("teardown = %v, want %v", got, want)
	}
	if !source.released.Load() {
		t.Error("media not released after disqualification")
	}
	for want := 1; want <= 3; want++ {
		if got := testutil.RequireReceive(t, h.warnings, waitTimeout, "warning %d", want); got != want {
			t.Errorf("warning count = %d, want %d", got, want)
		}
	}

	h.clock.Advance(3 * DefaultSampleInterval)
	if n := source.snapshots.Load(); n != 1 {
		t.Errorf("%d snapshots, want sampling to end at disqualification", n)
	}
}

func TestMonitorStopFromWarningHook(t *testing.T) {
	var h *harness
	var once sync.Once
	hookStopped := make(chan struct{})
	h = newHarness(t, grantImmediately, media.Sample{Frame: solidFrame(black), Spectrum: spectrum(0)},
		func(config *Config) {
			config.OnWarning = func(finding integrity.Finding, count, limit int) {
				once.Do(func() {
					h.monitor.Stop()
					close(hookStopped)
				})
			}
		})
	h.start(t)
	h.tick()

	testutil.RequireClosed(t, hookStopped, waitTimeout, "Stop called from OnWarning")
	want := []string{"cancel_reconnect timers=0", "release", "disconnect"}
	if got := h.log.snapshot(); !slices.Equal(got, want) {
		t.Errorf("teardown = %v, want %v", got, want)
	}
	if finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout, "no_face report"); finding.Kind() != integrity.KindNoFace {
		t.Errorf("reported %s, want no_face", finding.Kind())
	}
}

func TestMonitorHandleEvent(t *testing.T) {
	h := newHarness(t, blockUntilCancelled, media.Sample{}, nil)
	h.start(t)

	if action := h.monitor.HandleEvent(Event{Kind: EventContextMenu}); !action.Suppress {
		t.Error("context menu not suppressed")
	}
	if finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout); finding.Kind() != integrity.KindRightClick {
		t.Errorf("reported %s, want right_click", finding.Kind())
	}

	if action := h.monitor.HandleEvent(Event{Kind: EventFullscreenEnter}); action.Suppress {
		t.Error("fullscreen enter suppressed")
	}
	if !h.monitor.Status().Fullscreen {
		t.Error("status not fullscreen after enter")
	}
	if n := len(h.reporter.reports); n != 0 {
		t.Errorf("fullscreen enter reported %d findings", n)
	}

	h.monitor.ResetEditor(100)
	h.monitor.HandleEvent(Event{Kind: EventEditorChange, CodeLength: 103})
	finding := testutil.RequireReceive(t, h.reporter.reports, waitTimeout)
	if finding.Kind() != integrity.KindKeypress {
		t.Errorf("reported %s, want keypress", finding.Kind())
	}
	if h.monitor.Ledger().Count() != 1 {
		t.Errorf("ledger count = %d, want 1", h.monitor.Ledger().Count())
	}

	h.monitor.SetQuestion("q-2")
	if h.reporter.question() != "q-2" {
		t.Errorf("question = %q, want q-2", h.reporter.question())
	}
}

func TestMonitorStartErrors(t *testing.T) {
	h := newHarness(t, blockUntilCancelled, media.Sample{}, nil)

	if err := h.monitor.Start(context.Background(), integrity.Session{SessionID: "s-1"}); err == nil {
		t.Error("Start accepted a session without a token")
	}

	h.start(t)
	err := h.monitor.Start(context.Background(), integrity.Session{SessionID: "s-1", AuthToken: "tok"})
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}

	h.monitor.Stop()
	stopped := newHarness(t, blockUntilCancelled, media.Sample{}, nil)
	stopped.monitor.Stop()
	err = stopped.monitor.Start(context.Background(), integrity.Session{SessionID: "s-1", AuthToken: "tok"})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v, want ErrStopped", err)
	}
}

func TestMonitorStatusChannel(t *testing.T) {
	h := newHarness(t, blockUntilCancelled, media.Sample{}, nil)
	if h.monitor.Status().Channel != telemetry.Disconnected {
		t.Errorf("channel before Start = %s", h.monitor.Status().Channel)
	}
	h.start(t)
	if h.monitor.Status().Channel != telemetry.Connected {
		t.Errorf("channel after Start = %s", h.monitor.Status().Channel)
	}
	if h.monitor.Status().Face != heuristic.FaceUnknown {
		t.Errorf("face before any tick = %s", h.monitor.Status().Face)
	}
}
