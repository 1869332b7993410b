// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so that timer-driven
// behavior (stream reconnect delays, revoke confirmation waits, record
// timestamps) can be tested deterministically.
//
// Production code holds a Clock field set to Real(). Tests use Fake(),
// which stands still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := tasksync.NewManager(tasksync.ManagerConfig{Clock: c, ...})
//	// ... trigger a terminal stream error ...
//	c.WaitForTimers(1)         // the reconnect timer is registered
//	c.Advance(5 * time.Second) // and fires deterministically
//
// WaitForTimers closes the race between a goroutine registering a timer
// and the test advancing time.
package clock
