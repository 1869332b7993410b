// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskstore is the client-side cache of background task status:
// one [task.StatusRecord] per task id, updated by shallow merge, with a
// query layer that correlates tasks to the domain entities they act on.
//
// The store is a display cache, not a source of truth. It accepts any
// update with a non-empty task id, never evicts on its own, and notifies
// subscribers of every change so that views can re-render. Writers are
// the push stream, reconciliation reads, and explicit removal; all go
// through [Store.Merge] or [Store.Remove] and are serialized by the
// store's mutex.
package taskstore
