// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for proctor packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts are
// used; everything else runs on a fake clock.
//
// [Eventually] polls a condition for state that settles on another
// goroutine, such as a websocket read loop noticing a close.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no proctor-internal dependencies.
package testutil
