// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"sync"
	"time"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/codec"
	"github.com/codeshield/proctor/lib/netutil"
	"github.com/codeshield/proctor/lib/schema/integrity"
)

// Reconnect policy defaults.
const (
	DefaultMaxReconnects    = 5
	DefaultReconnectBackoff = 2 * time.Second
	DefaultDialTimeout      = 10 * time.Second
)

// ErrInvalidSession is returned by Connect when the session id or the
// token is empty.
var ErrInvalidSession = errors.New("telemetry: session id and token are required")

// State is the channel's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Conn is one message-oriented connection to the collector.
type Conn interface {
	// WriteMessage sends one encoded envelope.
	WriteMessage(data []byte) error

	// ReadMessage blocks for the next inbound message. It returns an
	// error once the connection is closed by either side.
	ReadMessage() ([]byte, error)

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections to the collector.
type Dialer interface {
	Dial(ctx context.Context, target string) (Conn, error)
}

// Config configures a Channel.
type Config struct {
	// CollectorURL is the base URL; the session path is appended.
	CollectorURL string

	// Dialer opens connections. Nil uses a WebSocketDialer matching
	// Encoding.
	Dialer Dialer

	// Encoding selects JSON (default) or CBOR envelopes.
	Encoding codec.Encoding

	// MaxReconnects bounds reconnect attempts after a close. Zero
	// means DefaultMaxReconnects; negative disables reconnects.
	MaxReconnects int

	// ReconnectBackoff is the linear backoff step. Zero means
	// DefaultReconnectBackoff.
	ReconnectBackoff time.Duration

	// DialTimeout bounds one dial. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// CadenceWindow is the number of gaps in the typing average.
	CadenceWindow int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Channel is a reconnecting, at-most-once event stream to the
// collector. Safe for concurrent use.
type Channel struct {
	collector     *url.URL
	dialer        Dialer
	encoding      codec.Encoding
	maxReconnects int
	backoff       time.Duration
	dialTimeout   time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	// readers tracks read loops and dials started by Connect so
	// Disconnect can wait for them.
	readers sync.WaitGroup

	mu         sync.Mutex
	state      State
	conn       Conn
	generation uint64
	attempts   int
	reconnect  bool
	timer      *clock.Timer
	lifetime   context.Context
	cancel     context.CancelFunc
	target     string
	sessionID  string
	questionID string
	dropped    int
	cadence    *Cadence
}

// NewChannel returns a disconnected Channel.
func NewChannel(config Config) (*Channel, error) {
	collector, err := url.Parse(config.CollectorURL)
	if err != nil {
		return nil, fmt.Errorf("parsing collector URL: %w", err)
	}
	if collector.Scheme != "ws" && collector.Scheme != "wss" {
		return nil, fmt.Errorf("collector URL %q: scheme must be ws or wss", config.CollectorURL)
	}

	encoding := config.Encoding
	if encoding == "" {
		encoding = codec.JSON
	}
	maxReconnects := config.MaxReconnects
	switch {
	case maxReconnects == 0:
		maxReconnects = DefaultMaxReconnects
	case maxReconnects < 0:
		maxReconnects = 0
	}
	backoff := config.ReconnectBackoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = &WebSocketDialer{Binary: encoding.Binary(), HandshakeTimeout: dialTimeout}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		collector:     collector,
		dialer:        dialer,
		encoding:      encoding,
		maxReconnects: maxReconnects,
		backoff:       backoff,
		dialTimeout:   dialTimeout,
		clock:         clk,
		logger:        logger,
		cadence:       NewCadence(config.CadenceWindow),
	}, nil
}

// SessionURL returns the collector address for a session.
func (c *Channel) SessionURL(sessionID, token string) string {
	target := c.collector.JoinPath("sessions", sessionID)
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()
	return target.String()
}

// Connect starts opening the session's connection and returns without
// waiting for it; the channel is Connecting until the first dial
// finishes. A failed dial is handled like a close and schedules a
// reconnect. The only error is ErrInvalidSession.
func (c *Channel) Connect(ctx context.Context, sessionID, token string) error {
	if sessionID == "" || token == "" {
		return ErrInvalidSession
	}

	c.mu.Lock()
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
	}
	previous := c.conn
	c.conn = nil
	c.generation++
	generation := c.generation
	c.lifetime, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.target = c.SessionURL(sessionID, token)
	c.sessionID = sessionID
	c.attempts = 0
	c.reconnect = true
	c.state = Connecting
	c.readers.Add(1)
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	go func() {
		defer c.readers.Done()
		c.dial(generation)
	}()
	return nil
}

// dial makes one connection attempt for generation. Results for a
// superseded generation are discarded.
func (c *Channel) dial(generation uint64) {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.state = Connecting
	target := c.target
	lifetime := c.lifetime
	c.mu.Unlock()

	dialContext, cancel := context.WithTimeout(lifetime, c.dialTimeout)
	conn, err := c.dialer.Dial(dialContext, target)
	cancel()

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		sessionID, attempt := c.sessionID, c.attempts
		c.mu.Unlock()
		c.logger.Debug("telemetry dial failed",
			"session_id", sessionID,
			"attempt", attempt,
			"error", err,
		)
		c.handleClose(generation, nil)
		return
	}
	c.conn = conn
	c.state = Connected
	c.attempts = 0
	sessionID := c.sessionID
	c.readers.Add(1)
	c.mu.Unlock()

	c.logger.Info("telemetry connected", "session_id", sessionID)
	go c.readLoop(generation, conn)
}

// readLoop drains collector acks until the connection closes.
func (c *Channel) readLoop(generation uint64, conn Conn) {
	defer c.readers.Done()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if netutil.IsExpectedCloseError(err) {
				c.logger.Debug("telemetry connection closed", "error", err)
			} else {
				c.logger.Info("telemetry connection lost",
					"close_code", netutil.CloseCode(err),
					"error", err,
				)
			}
			c.handleClose(generation, conn)
			return
		}

		var ack Ack
		if err := c.encoding.Unmarshal(data, &ack); err != nil {
			c.logger.Debug("undecodable collector message", "bytes", len(data), "error", err)
			continue
		}
		c.logger.Debug("collector ack",
			"status", ack.Status,
			"type", ack.Type,
			"violation_count", ack.ViolationCount,
		)
	}
}

// handleClose records that conn (nil for a failed dial) is gone and
// schedules the next reconnect attempt if any remain.
func (c *Channel) handleClose(generation uint64, conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || c.conn != conn {
		return
	}
	if conn != nil {
		conn.Close()
		c.conn = nil
	}
	c.state = Disconnected

	if !c.reconnect {
		return
	}
	if c.attempts >= c.maxReconnects {
		c.logger.Info("telemetry reconnect attempts exhausted",
			"session_id", c.sessionID,
			"attempts", c.attempts,
		)
		return
	}

	c.attempts++
	backoff := c.backoff * time.Duration(c.attempts)
	c.logger.Info("telemetry reconnect scheduled",
		"session_id", c.sessionID,
		"attempt", c.attempts,
		"backoff", backoff,
	)
	c.timer = c.clock.AfterFunc(backoff, func() { c.dial(generation) })
}

// SetQuestion sets the question id stamped on every envelope. Events
// are dropped until a question is set.
func (c *Channel) SetQuestion(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questionID = questionID
}

// Send writes one event if the channel is connected and a question is
// set, and reports whether it was written. Dropped events are counted.
// A payload without a timestamp is sent with the current
// epoch-millisecond time; the caller's map is not modified.
func (c *Channel) Send(eventType string, payload map[string]any) bool {
	if _, ok := payload["timestamp"]; !ok {
		payload = maps.Clone(payload)
		if payload == nil {
			payload = make(map[string]any, 1)
		}
		payload["timestamp"] = c.clock.Now().UnixMilli()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Connected || c.conn == nil || c.questionID == "" {
		c.dropped++
		return false
	}

	data, err := c.encoding.Marshal(Envelope{
		Type:       eventType,
		QuestionID: c.questionID,
		Payload:    payload,
	})
	if err != nil {
		c.dropped++
		c.logger.Warn("encoding telemetry envelope", "type", eventType, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(data); err != nil {
		c.dropped++
		c.logger.Debug("telemetry write failed", "type", eventType, "error", err)
		// The read loop observes the close and schedules the reconnect.
		c.conn.Close()
		return false
	}
	return true
}

// Report sends a finding. Keypress findings also update the typing
// cadence and carry typing_speed_ms, whether or not the event is sent.
func (c *Channel) Report(finding integrity.Finding) bool {
	payload := findingPayload(finding)
	if finding.Kind() == integrity.KindKeypress {
		c.mu.Lock()
		payload["typing_speed_ms"] = c.cadence.Observe(finding.Timestamp())
		c.mu.Unlock()
	}
	return c.Send(string(finding.Kind()), payload)
}

// CancelReconnect cancels a pending reconnect and prevents new ones,
// leaving any open connection in place.
func (c *Channel) CancelReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnect = false
	c.stopTimerLocked()
}

// Disconnect cancels any pending reconnect, closes the connection, and
// resets the attempt count. It waits for the read loop to finish and
// is safe to call more than once.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.generation++
	c.reconnect = false
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil && !netutil.IsExpectedCloseError(err) {
			c.logger.Debug("closing telemetry connection", "error", err)
		}
	}
	c.readers.Wait()
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// State returns the connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns the attempts made since the last open.
func (c *Channel) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Dropped returns how many events were dropped.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// TypingSpeed returns the current typing average in milliseconds.
func (c *Channel) TypingSpeed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cadence.Average()
}
