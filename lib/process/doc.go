// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for proctor binaries.
//
// [Fatal] reports an error from run() to stderr and exits 1; it exists
// for errors that happen before the structured logger does. [NewLogger]
// builds the slog logger every binary uses: a text handler when stderr
// is a terminal, JSON otherwise, unless the configured format forces
// one or the other.
package process
