// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"golang.org/x/sys/unix"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"broken pipe", unix.EPIPE, true},
		{"reset", &net.OpError{Op: "read", Err: unix.ECONNRESET}, true},
		{"refused", unix.ECONNREFUSED, false},
		{"normal close frame", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"policy close", &websocket.CloseError{Code: 4001, Text: "unauthorized"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestCloseCode(t *testing.T) {
	err := fmt.Errorf("read: %w", &websocket.CloseError{Code: 4001, Text: "unauthorized"})
	if got := CloseCode(err); got != 4001 {
		t.Errorf("CloseCode = %d, want 4001", got)
	}
	if got := CloseCode(io.EOF); got != 0 {
		t.Errorf("CloseCode(EOF) = %d, want 0", got)
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("session not found")); got != "session not found" {
		t.Errorf("ErrorBody = %q", got)
	}
}
