// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"encoding/json"
	"time"
)

// Push stream event names.
const (
	EventTaskUpdate = "task_update"
	EventHeartbeat  = "heartbeat"
)

// Heartbeat is the payload of a "heartbeat" push event. Only the
// timestamp is meaningful; other fields are ignored.
type Heartbeat struct {
	Timestamp *Instant `json:"timestamp,omitempty"`
}

// RemoteStatus is the response body of GET /api/v1/tasks/{task_id}:
// the worker pool's authoritative view of one task.
type RemoteStatus struct {
	TaskID        string          `json:"task_id"`
	Status        Status          `json:"status"`
	Progress      *int            `json:"progress,omitempty"`
	StatusMessage *string         `json:"status_message,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
}

// Record converts the REST shape into a StatusRecord stamped with now.
// Fields the endpoint does not report (task name, job type, entity
// reference) are left absent so that merging the result into an
// existing record keeps them.
func (s RemoteStatus) Record(now time.Time) StatusRecord {
	record := StatusRecord{
		TaskID:        s.TaskID,
		Progress:      clonePointer(s.Progress),
		StatusMessage: clonePointer(s.StatusMessage),
		Timestamp:     At(now),
	}
	if s.Status != "" {
		record.Status = Ptr(s.Status)
	}
	if present(s.Error) {
		record.ErrorDetails = cloneRaw(s.Error)
	}
	if present(s.Result) {
		record.ResultSummary = cloneRaw(s.Result)
	}
	return record
}

// RevokeResponse is the response body of
// POST /api/v1/tasks/{task_id}/revoke.
type RevokeResponse struct {
	Message string `json:"message"`
}
