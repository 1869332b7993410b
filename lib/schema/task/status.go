// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "strings"

// Status is a task lifecycle state as reported by the worker pool. The
// vocabulary is open: producers may add states at any time, and unknown
// values are carried through for display unchanged. Comparisons are
// case-insensitive; use [Status.Is] rather than ==.
type Status string

// Known statuses.
const (
	StatusPending  Status = "PENDING"
	StatusReceived Status = "RECEIVED"
	StatusStarted  Status = "STARTED"
	StatusRunning  Status = "RUNNING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRetry    Status = "RETRY"
	StatusRevoked  Status = "REVOKED"
)

// Is reports whether s and other name the same status, ignoring case.
func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

// Terminal reports whether s is a state the task never leaves:
// SUCCESS, FAILED, or REVOKED.
func (s Status) Terminal() bool {
	return s.Is(StatusSuccess) || s.Is(StatusFailed) || s.Is(StatusRevoked)
}

// Active reports whether the task is currently executing (STARTED or
// RUNNING).
func (s Status) Active() bool {
	return s.Is(StatusStarted) || s.Is(StatusRunning)
}

// Canonical returns the upper-cased form used for display and grouping.
func (s Status) Canonical() Status {
	return Status(strings.ToUpper(strings.TrimSpace(string(s))))
}
