// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package task defines the background task status types shared by the
// push stream, the REST task endpoints, and the client-side status
// cache: [StatusRecord] (one task's latest known status), the open
// [Status] vocabulary, [EntityID] (a domain object id that producers
// send as either a JSON number or a JSON string), and the REST response
// shapes [RemoteStatus] and [RevokeResponse].
//
// StatusRecord uses pointer fields so that a partial update can be told
// apart from a zero value: a nil field is "absent in this update" and
// [StatusRecord.Merge] leaves the prior value in place.
package task
