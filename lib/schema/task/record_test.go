// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMergeKeepsAbsentFields(t *testing.T) {
	prior := StatusRecord{
		TaskID:  "t1",
		Status:  Ptr(StatusRunning),
		JobType: Ptr("x"),
	}
	merged := prior.Merge(StatusRecord{TaskID: "t1", Progress: Ptr(50)})

	if merged.StatusValue() != StatusRunning {
		t.Errorf("status = %q, want RUNNING", merged.StatusValue())
	}
	if progress, ok := merged.ProgressValue(); !ok || progress != 50 {
		t.Errorf("progress = %d (present %v), want 50", progress, ok)
	}
	if merged.JobTypeValue() != "x" {
		t.Errorf("job_type = %q, want x", merged.JobTypeValue())
	}
}

func TestMergeOverwritesPresentFields(t *testing.T) {
	prior := StatusRecord{
		TaskID:        "t1",
		Status:        Ptr(StatusRunning),
		Progress:      Ptr(10),
		StatusMessage: Ptr("starting"),
		ErrorDetails:  json.RawMessage(`{"old":true}`),
	}
	merged := prior.Merge(StatusRecord{
		TaskID:        "t1",
		Status:        Ptr(StatusFailed),
		Progress:      Ptr(0),
		StatusMessage: Ptr(""),
		ErrorDetails:  json.RawMessage(`{"reason":"oom"}`),
	})

	if merged.StatusValue() != StatusFailed {
		t.Errorf("status = %q, want FAILED", merged.StatusValue())
	}
	// Zero values are present values, not absent ones.
	if progress, ok := merged.ProgressValue(); !ok || progress != 0 {
		t.Errorf("progress = %d (present %v), want explicit 0", progress, ok)
	}
	if merged.StatusMessage == nil || *merged.StatusMessage != "" {
		t.Errorf("status_message = %v, want explicit empty string", merged.StatusMessage)
	}
	if string(merged.ErrorDetails) != `{"reason":"oom"}` {
		t.Errorf("error_details = %s", merged.ErrorDetails)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	update := StatusRecord{
		TaskID:        "job-7",
		TaskName:      Ptr("Ingest repository"),
		Status:        Ptr(StatusStarted),
		Progress:      Ptr(30),
		JobType:       Ptr("ingest"),
		EntityType:    Ptr("Repository"),
		EntityID:      Ptr(EntityID("7")),
		Timestamp:     At(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		ResultSummary: json.RawMessage(`{"files":12}`),
	}
	once := StatusRecord{}.Merge(update)
	twice := once.Merge(update)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merging twice differs from merging once:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeIgnoresTimestampOrdering(t *testing.T) {
	later := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	earlier := later.Add(-time.Minute)
	prior := StatusRecord{TaskID: "t1", Status: Ptr(StatusSuccess), Timestamp: At(later)}

	// A late progress tick carrying an older timestamp still applies.
	merged := prior.Merge(StatusRecord{TaskID: "t1", Progress: Ptr(90), Timestamp: At(earlier)})
	if progress, _ := merged.ProgressValue(); progress != 90 {
		t.Errorf("progress = %d, want 90", progress)
	}
	if !merged.Time().Equal(earlier) {
		t.Errorf("timestamp = %v, want %v", merged.Time(), earlier)
	}
	if merged.StatusValue() != StatusSuccess {
		t.Errorf("status = %q, want SUCCESS preserved", merged.StatusValue())
	}
}

func TestMergeTreatsNullRawAsAbsent(t *testing.T) {
	prior := StatusRecord{TaskID: "t1", ResultSummary: json.RawMessage(`{"rows":5}`)}
	merged := prior.Merge(StatusRecord{TaskID: "t1", ResultSummary: json.RawMessage(`null`)})
	if string(merged.ResultSummary) != `{"rows":5}` {
		t.Fatalf("result_summary = %s, want prior value kept", merged.ResultSummary)
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	update := StatusRecord{TaskID: "t1", Progress: Ptr(10), ErrorDetails: json.RawMessage(`"x"`)}
	merged := StatusRecord{}.Merge(update)

	*update.Progress = 99
	update.ErrorDetails[1] = 'y'

	if progress, _ := merged.ProgressValue(); progress != 10 {
		t.Errorf("merged progress changed through the update pointer: %d", progress)
	}
	if string(merged.ErrorDetails) != `"x"` {
		t.Errorf("merged error_details changed through the update slice: %s", merged.ErrorDetails)
	}
}

func TestDecodeTaskUpdate(t *testing.T) {
	payload := `{
		"task_id": "job-42",
		"status": "running",
		"progress": 10,
		"entity_type": "Dataset",
		"entity_id": 3,
		"job_type": "dataset_generation",
		"timestamp": "2026-03-01T12:00:00.250Z",
		"result_summary": {"rows": 10}
	}`
	var record StatusRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if record.TaskID != "job-42" {
		t.Errorf("task_id = %q", record.TaskID)
	}
	if !record.StatusValue().Is(StatusRunning) {
		t.Errorf("status = %q, want case-insensitive RUNNING", record.StatusValue())
	}
	if record.EntityIDValue() != "3" {
		t.Errorf("entity_id = %q, want \"3\"", record.EntityIDValue())
	}
	if record.TaskName != nil || record.StatusMessage != nil || record.ErrorDetails != nil {
		t.Errorf("absent fields decoded as present: %+v", record)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	if !record.Time().Equal(want) {
		t.Errorf("timestamp = %v, want %v", record.Time(), want)
	}
}

func TestEntityIDDecoding(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EntityID
		wantErr bool
	}{
		{name: "number", input: `7`, want: "7"},
		{name: "string", input: `"7"`, want: "7"},
		{name: "uuid string", input: `"5f1c0e52-aa1d-4c0a-9a4b-4b6f1c7d2e10"`, want: "5f1c0e52-aa1d-4c0a-9a4b-4b6f1c7d2e10"},
		{name: "large number", input: `12345678901234567890`, want: "12345678901234567890"},
		{name: "bool", input: `true`, want: "true"},
		{name: "array", input: `[1]`, wantErr: true},
		{name: "object", input: `{"id":1}`, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var id EntityID
			err := json.Unmarshal([]byte(test.input), &id)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if id != test.want {
				t.Errorf("got %q, want %q", id, test.want)
			}
		})
	}
}

func TestParseInstant(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-03-01T12:00:00Z", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2026-03-01T14:00:00+02:00", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{"2026-03-01T12:00:00.123456", time.Date(2026, 3, 1, 12, 0, 0, 123_456_000, time.UTC)},
		{"2026-03-01 12:00:00", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		got, err := ParseInstant(test.input)
		if err != nil {
			t.Errorf("ParseInstant(%q): %v", test.input, err)
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("ParseInstant(%q) = %v, want %v", test.input, got.Time, test.want)
		}
	}

	if _, err := ParseInstant("yesterday"); err == nil {
		t.Error("ParseInstant(\"yesterday\") should fail")
	}
}

func TestStatusVocabulary(t *testing.T) {
	terminal := []Status{"SUCCESS", "failed", "Revoked"}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("%q should be terminal", status)
		}
	}
	nonTerminal := []Status{"PENDING", "received", "STARTED", "running", "RETRY", "QUEUED_ON_GPU", ""}
	for _, status := range nonTerminal {
		if status.Terminal() {
			t.Errorf("%q should not be terminal", status)
		}
	}
	if !Status("started").Active() || !Status("RUNNING").Active() || Status("PENDING").Active() {
		t.Error("Active() misclassifies STARTED/RUNNING/PENDING")
	}
	if got := Status(" success ").Canonical(); got != StatusSuccess {
		t.Errorf("Canonical() = %q, want SUCCESS", got)
	}
}

func TestRemoteStatusRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var remote RemoteStatus
	body := `{"task_id":"t9","status":"FAILED","progress":40,"status_message":"worker lost","error":{"type":"WorkerLostError"},"result":null}`
	if err := json.Unmarshal([]byte(body), &remote); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	record := remote.Record(now)
	if record.TaskID != "t9" || record.StatusValue() != StatusFailed {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.Time().Equal(now) {
		t.Errorf("timestamp = %v, want %v", record.Time(), now)
	}
	if string(record.ErrorDetails) != `{"type":"WorkerLostError"}` {
		t.Errorf("error_details = %s", record.ErrorDetails)
	}
	if record.ResultSummary != nil {
		t.Errorf("null result should be absent, got %s", record.ResultSummary)
	}
	if record.EntityType != nil || record.JobType != nil {
		t.Errorf("REST read must not set correlation fields: %+v", record)
	}
}

func TestDecodeUpdateKeepsWellTypedFields(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		wantSkipped []string
		check       func(t *testing.T, record StatusRecord)
	}{
		{
			name:    "fractional progress rounds",
			payload: `{"task_id":"p1","status":"RUNNING","progress":42.5}`,
			check: func(t *testing.T, record StatusRecord) {
				if progress, ok := record.ProgressValue(); !ok || progress != 43 {
					t.Errorf("progress = %d (present %v), want 43", progress, ok)
				}
			},
		},
		{
			name:    "numeric string progress",
			payload: `{"task_id":"p1","status":"RUNNING","progress":"7"}`,
			check: func(t *testing.T, record StatusRecord) {
				if progress, _ := record.ProgressValue(); progress != 7 {
					t.Errorf("progress = %d, want 7", progress)
				}
			},
		},
		{
			name:        "word progress is skipped",
			payload:     `{"task_id":"p1","status":"RUNNING","progress":"many"}`,
			wantSkipped: []string{"progress"},
			check: func(t *testing.T, record StatusRecord) {
				if record.Progress != nil {
					t.Errorf("progress = %d, want absent", *record.Progress)
				}
			},
		},
		{
			name:    "epoch seconds timestamp",
			payload: `{"task_id":"p1","status":"RUNNING","timestamp":1772366400}`,
			check: func(t *testing.T, record StatusRecord) {
				want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
				if !record.Time().Equal(want) {
					t.Errorf("timestamp = %v, want %v", record.Time(), want)
				}
			},
		},
		{
			name:    "epoch milliseconds timestamp",
			payload: `{"task_id":"p1","status":"RUNNING","timestamp":1772366400500}`,
			check: func(t *testing.T, record StatusRecord) {
				want := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
				if !record.Time().Equal(want) {
					t.Errorf("timestamp = %v, want %v", record.Time(), want)
				}
			},
		},
		{
			name:        "unparseable timestamp is skipped",
			payload:     `{"task_id":"p1","status":"RUNNING","timestamp":"yesterday"}`,
			wantSkipped: []string{"timestamp"},
			check: func(t *testing.T, record StatusRecord) {
				if record.Timestamp != nil {
					t.Errorf("timestamp = %v, want absent", record.Time())
				}
			},
		},
		{
			name:    "boolean entity id",
			payload: `{"task_id":"p1","status":"RUNNING","entity_id":false}`,
			check: func(t *testing.T, record StatusRecord) {
				if record.EntityIDValue() != "false" {
					t.Errorf("entity_id = %q, want \"false\"", record.EntityIDValue())
				}
			},
		},
		{
			name:        "several bad fields",
			payload:     `{"task_id":"p1","status":"RUNNING","job_type":5,"entity_type":{},"task_name":["a"]}`,
			wantSkipped: []string{"entity_type", "job_type", "task_name"},
			check: func(t *testing.T, record StatusRecord) {
				if record.JobType != nil || record.EntityType != nil || record.TaskName != nil {
					t.Errorf("mistyped fields decoded as present: %+v", record)
				}
			},
		},
		{
			name:    "numeric task id",
			payload: `{"task_id":17,"status":"RUNNING"}`,
			check: func(t *testing.T, record StatusRecord) {
				if record.TaskID != "17" {
					t.Errorf("task_id = %q, want \"17\"", record.TaskID)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record, skipped, err := DecodeUpdate([]byte(test.payload))
			if err != nil {
				t.Fatalf("DecodeUpdate: %v", err)
			}
			if !record.StatusValue().Is(StatusRunning) {
				t.Errorf("status = %q, want RUNNING kept", record.StatusValue())
			}
			if !reflect.DeepEqual(skipped, test.wantSkipped) {
				t.Errorf("skipped = %v, want %v", skipped, test.wantSkipped)
			}
			test.check(t, record)
		})
	}
}

func TestDecodeUpdateRejectsNonObjects(t *testing.T) {
	for _, payload := range []string{`{not json`, `[1,2]`, `"task"`, ``} {
		if _, _, err := DecodeUpdate([]byte(payload)); err == nil {
			t.Errorf("DecodeUpdate(%q) succeeded, want error", payload)
		}
	}
}

func TestHeartbeatDecoding(t *testing.T) {
	var heartbeat Heartbeat
	if err := json.Unmarshal([]byte(`{"timestamp":"2026-03-01T12:00:20Z","sequence":9}`), &heartbeat); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 0, 20, 0, time.UTC)
	if heartbeat.Timestamp == nil || !heartbeat.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", heartbeat.Timestamp, want)
	}
}
