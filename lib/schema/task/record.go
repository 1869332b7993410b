// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"bytes"
	"encoding/json"
	"time"
)

// StatusRecord is the latest known status of one background task. It is
// both the payload of a "task_update" push event and the value held by
// the client-side status cache.
//
// Every field except TaskID is optional. A nil pointer (or an empty or
// JSON-null RawMessage) means the field was absent from the update that
// produced the record.
type StatusRecord struct {
	// TaskID is the opaque task identifier and the cache key.
	TaskID string `json:"task_id"`

	// TaskName is a human-readable label (e.g., "Generate dataset").
	TaskName *string `json:"task_name,omitempty"`

	Status *Status `json:"status,omitempty"`

	// Progress is a percentage in [0, 100]. Values outside that range
	// are stored as received.
	Progress *int `json:"progress,omitempty"`

	StatusMessage *string `json:"status_message,omitempty"`

	// JobType classifies the work (e.g., "dataset_generation",
	// "ingest", "training").
	JobType *string `json:"job_type,omitempty"`

	// EntityType and EntityID refer back to the domain object the task
	// acts on (e.g., "Repository", 7).
	EntityType *string   `json:"entity_type,omitempty"`
	EntityID   *EntityID `json:"entity_id,omitempty"`

	// Timestamp is the event time. It orders tasks of the same entity
	// for display; it is never used to reject an update to the same
	// task.
	Timestamp *Instant `json:"timestamp,omitempty"`

	// ErrorDetails is set by producers on failure.
	ErrorDetails json.RawMessage `json:"error_details,omitempty"`

	// ResultSummary is an opaque payload set on success.
	ResultSummary json.RawMessage `json:"result_summary,omitempty"`
}

// Merge returns r updated with every field present in update. Fields
// absent from update keep their value from r. The result shares no
// memory with either input.
//
// Merge does not compare timestamps: a late partial update to the same
// task always applies.
func (r StatusRecord) Merge(update StatusRecord) StatusRecord {
	merged := r.Clone()
	if merged.TaskID == "" {
		merged.TaskID = update.TaskID
	}
	if update.TaskName != nil {
		merged.TaskName = clonePointer(update.TaskName)
	}
	if update.Status != nil {
		merged.Status = clonePointer(update.Status)
	}
	if update.Progress != nil {
		merged.Progress = clonePointer(update.Progress)
	}
	if update.StatusMessage != nil {
		merged.StatusMessage = clonePointer(update.StatusMessage)
	}
	if update.JobType != nil {
		merged.JobType = clonePointer(update.JobType)
	}
	if update.EntityType != nil {
		merged.EntityType = clonePointer(update.EntityType)
	}
	if update.EntityID != nil {
		merged.EntityID = clonePointer(update.EntityID)
	}
	if update.Timestamp != nil {
		merged.Timestamp = clonePointer(update.Timestamp)
	}
	if present(update.ErrorDetails) {
		merged.ErrorDetails = cloneRaw(update.ErrorDetails)
	}
	if present(update.ResultSummary) {
		merged.ResultSummary = cloneRaw(update.ResultSummary)
	}
	return merged
}

// Clone returns a deep copy of r.
func (r StatusRecord) Clone() StatusRecord {
	return StatusRecord{
		TaskID:        r.TaskID,
		TaskName:      clonePointer(r.TaskName),
		Status:        clonePointer(r.Status),
		Progress:      clonePointer(r.Progress),
		StatusMessage: clonePointer(r.StatusMessage),
		JobType:       clonePointer(r.JobType),
		EntityType:    clonePointer(r.EntityType),
		EntityID:      clonePointer(r.EntityID),
		Timestamp:     clonePointer(r.Timestamp),
		ErrorDetails:  cloneRaw(r.ErrorDetails),
		ResultSummary: cloneRaw(r.ResultSummary),
	}
}

// StatusValue returns the status, or "" when absent.
func (r StatusRecord) StatusValue() Status {
	if r.Status == nil {
		return ""
	}
	return *r.Status
}

// ProgressValue returns the progress and whether it is present.
func (r StatusRecord) ProgressValue() (int, bool) {
	if r.Progress == nil {
		return 0, false
	}
	return *r.Progress, true
}

// JobTypeValue returns the job type, or "" when absent.
func (r StatusRecord) JobTypeValue() string {
	return valueOrZero(r.JobType)
}

// EntityTypeValue returns the entity type, or "" when absent.
func (r StatusRecord) EntityTypeValue() string {
	return valueOrZero(r.EntityType)
}

// EntityIDValue returns the entity id as a string, or "" when absent.
func (r StatusRecord) EntityIDValue() string {
	if r.EntityID == nil {
		return ""
	}
	return r.EntityID.String()
}

// Time returns the event time, or the zero time when absent.
func (r StatusRecord) Time() time.Time {
	if r.Timestamp == nil {
		return time.Time{}
	}
	return r.Timestamp.Time
}

// Terminal reports whether the record carries a terminal status.
func (r StatusRecord) Terminal() bool {
	return r.Status != nil && r.Status.Terminal()
}

// Ptr returns a pointer to v. It shortens building partial updates:
//
//	task.StatusRecord{TaskID: "t1", Progress: task.Ptr(50)}
func Ptr[T any](v T) *T {
	return &v
}

func clonePointer[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func valueOrZero[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// present reports whether a raw JSON field carries a value. A literal
// null counts as absent.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
