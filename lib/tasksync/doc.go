// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package tasksync keeps a [taskstore.Store] in step with the server's
// view of background tasks.
//
// Three writers feed the store:
//
//   - [Manager] holds the single push connection. It merges every
//     "task_update" event, tracks heartbeats and connection health, and
//     reconnects on a fixed delay after a terminal stream failure.
//   - [Reconciler] reads one task's status over REST and merges it,
//     stamped with the local clock. Callers use it to recover from a
//     gap in the push stream; nothing here calls it automatically.
//   - [Revoker] asks the server to cancel a task. It never writes to
//     the store: the cancellation is observed through the stream or a
//     later reconciliation.
//
// [Client] bundles the three with the correlation queries of the store
// for view code.
//
// The push connection sits behind [Transport] and [Stream] so the
// state machine can be driven by a fake in tests. [HTTPTransport] is
// the production implementation over text/event-stream.
package tasksync
