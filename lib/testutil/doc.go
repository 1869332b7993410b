// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Lattice packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that tests waiting on channels fail instead of hanging.
// [RequireNoReceive] asserts that nothing arrives within a short window,
// used to check that duplicate deliveries do not happen.
//
// All helpers call t.Fatalf on failure.
package testutil
