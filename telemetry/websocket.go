// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codeshield/proctor/lib/netutil"
)

// DefaultWriteTimeout bounds one websocket write.
const DefaultWriteTimeout = 10 * time.Second

// WebSocketDialer dials the collector over gorilla/websocket.
type WebSocketDialer struct {
	// Binary sends binary frames (CBOR) instead of text frames (JSON).
	Binary bool

	// HandshakeTimeout bounds the opening handshake. Zero means no
	// bound beyond the dial context.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Header is sent with the handshake, for example a User-Agent.
	Header http.Header
}

// Dial opens a websocket connection to target.
func (d *WebSocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, response, err := dialer.DialContext(ctx, target, d.Header)
	if err != nil {
		if response != nil {
			body := netutil.ErrorBody(response.Body)
			response.Body.Close()
			return nil, fmt.Errorf("dialing collector: %w (HTTP %d: %s)", err, response.StatusCode, body)
		}
		return nil, fmt.Errorf("dialing collector: %w", err)
	}

	messageType := websocket.TextMessage
	if d.Binary {
		messageType = websocket.BinaryMessage
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &webSocketConn{conn: conn, messageType: messageType, writeTimeout: writeTimeout}, nil
}

type webSocketConn struct {
	conn         *websocket.Conn
	messageType  int
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func (c *webSocketConn) WriteMessage(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(c.messageType, data)
}

func (c *webSocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close sends a normal close frame and closes the socket.
func (c *webSocketConn) Close() error {
	c.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		// The peer may already be gone; the close below is what matters.
		_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
