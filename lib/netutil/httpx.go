// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import "io"

// MaxResponseSize bounds response body reads: 16 MB.
const MaxResponseSize int64 = 16 << 20

// ErrorBody reads an error response body for use in diagnostic
// messages. Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
