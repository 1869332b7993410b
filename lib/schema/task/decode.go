// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DecodeUpdate decodes a task update payload one field at a time. A
// field whose value has an unexpected type is left absent and its name
// is reported in skipped; the remaining fields still decode. Only a
// payload that is not a JSON object is an error.
//
// Coercions: task_id and entity_id accept any JSON scalar as text,
// progress accepts any JSON number (rounded to the nearest integer),
// and timestamp accepts the string forms ParseInstant understands or a
// Unix epoch number.
func DecodeUpdate(data []byte) (record StatusRecord, skipped []string, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return StatusRecord{}, nil, fmt.Errorf("decoding task update: %w", err)
	}
	for name, raw := range fields {
		if !present(raw) {
			continue
		}
		if !record.decodeField(name, raw) {
			skipped = append(skipped, name)
		}
	}
	sort.Strings(skipped)
	return record, skipped, nil
}

// UnmarshalJSON decodes with the same tolerance as DecodeUpdate.
func (r *StatusRecord) UnmarshalJSON(data []byte) error {
	record, _, err := DecodeUpdate(data)
	if err != nil {
		return err
	}
	*r = record
	return nil
}

// decodeField sets one field from raw and reports whether raw had a
// usable type. Unknown field names are ignored.
func (r *StatusRecord) decodeField(name string, raw json.RawMessage) bool {
	switch name {
	case "task_id":
		text, ok := scalarText(raw)
		if !ok {
			return false
		}
		r.TaskID = text
	case "task_name":
		return decodeString(raw, &r.TaskName)
	case "status":
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return false
		}
		r.Status = Ptr(Status(text))
	case "progress":
		progress, ok := roundedInt(raw)
		if !ok {
			return false
		}
		r.Progress = &progress
	case "status_message":
		return decodeString(raw, &r.StatusMessage)
	case "job_type":
		return decodeString(raw, &r.JobType)
	case "entity_type":
		return decodeString(raw, &r.EntityType)
	case "entity_id":
		text, ok := scalarText(raw)
		if !ok {
			return false
		}
		r.EntityID = Ptr(EntityID(text))
	case "timestamp":
		instant, err := instantFromJSON(raw)
		if err != nil {
			return false
		}
		r.Timestamp = &instant
	case "error_details":
		r.ErrorDetails = cloneRaw(raw)
	case "result_summary":
		r.ResultSummary = cloneRaw(raw)
	}
	return true
}

func decodeString(raw json.RawMessage, target **string) bool {
	var text string
	if json.Unmarshal(raw, &text) != nil {
		return false
	}
	*target = &text
	return true
}

// scalarText renders a JSON string, number or boolean as text. Numbers
// keep their literal form so large ids survive unchanged.
func scalarText(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var text string
		if json.Unmarshal(trimmed, &text) != nil {
			return "", false
		}
		return text, true
	case 't', 'f':
		var flag bool
		if json.Unmarshal(trimmed, &flag) != nil {
			return "", false
		}
		if flag {
			return "true", true
		}
		return "false", true
	}
	var number json.Number
	if json.Unmarshal(trimmed, &number) != nil {
		return "", false
	}
	return number.String(), true
}

// maxExactInt is the largest magnitude a float64 holds without losing
// integer precision.
const maxExactInt = 1 << 53

// roundedInt decodes a JSON number (or a numeric string) and rounds it
// half away from zero.
func roundedInt(raw json.RawMessage) (int, bool) {
	var number json.Number
	if json.Unmarshal(raw, &number) != nil {
		return 0, false
	}
	value, err := number.Float64()
	if err != nil || math.Abs(value) > maxExactInt {
		return 0, false
	}
	return int(math.Round(value)), true
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// 1e11 seconds is past the year 5000; 1e11 milliseconds is 1973.
const epochMillisThreshold = 1e11

func instantFromJSON(raw json.RawMessage) (Instant, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return Instant{}, err
		}
		return ParseInstant(text)
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return Instant{}, fmt.Errorf("timestamp must be a string or an epoch number: %w", err)
	}
	value, err := number.Float64()
	if err != nil {
		return Instant{}, fmt.Errorf("timestamp %s: %w", number, err)
	}
	if math.Abs(value) >= epochMillisThreshold {
		value /= 1000
	}
	if math.Abs(value) > maxExactInt {
		return Instant{}, fmt.Errorf("timestamp %s out of range", number)
	}
	seconds := math.Floor(value)
	nanos := math.Round((value - seconds) * 1e9)
	return Instant{time.Unix(int64(seconds), int64(nanos)).UTC()}, nil
}
