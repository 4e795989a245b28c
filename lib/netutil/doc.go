// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O utilities for proctor.
//
// Connection error helpers ([IsExpectedCloseError], [CloseCode])
// classify the errors a websocket read loop sees when either side ends
// the connection, so teardown is not logged as a failure.
//
// [ErrorBody] reads a failed handshake's response body, bounded at
// [MaxResponseSize], for error messages.
package netutil
