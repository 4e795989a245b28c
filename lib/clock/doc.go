// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every timer in the proctoring
// core: the sampling ticker in the monitor and the reconnect backoff
// in the telemetry channel.
//
// Components hold a Clock field instead of calling time.Now,
// time.AfterFunc, or time.NewTicker directly. Production wiring passes
// Real(). Tests pass Fake(start), whose time only moves when the test
// calls Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	channel := telemetry.NewChannel(telemetry.Config{Clock: fake, ...})
//	// ... drop the connection ...
//	fake.WaitForTimers(1)       // reconnect timer is registered
//	fake.Advance(2 * time.Second) // reconnect fires deterministically
//
// AfterFunc callbacks registered on a FakeClock run synchronously on
// the goroutine that calls Advance, in deadline order. A callback must
// not call Advance itself.
package clock
