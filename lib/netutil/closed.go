// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"

	"github.com/gorilla/websocket"
	"golang.org/x/sys/unix"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, a closed connection, a broken pipe, a reset, or a
// websocket close frame with code 1000 (normal) or 1001 (going away).
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.EPIPE || errno == unix.ECONNRESET
	}
	return false
}

// CloseCode returns the websocket close code carried by err, or 0 when
// err is not a close frame.
func CloseCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return 0
}
