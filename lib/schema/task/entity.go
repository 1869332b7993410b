// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityID identifies the domain object (repository, dataset, model,
// ...) a task acts on. Some producers send ids as JSON numbers and
// others as JSON strings; both decode to the same EntityID, so
// {"entity_id": 3} and {"entity_id": "3"} compare equal.
type EntityID string

// UnmarshalJSON accepts a JSON string, number or boolean.
func (id *EntityID) UnmarshalJSON(data []byte) error {
	text, ok := scalarText(data)
	if !ok {
		return fmt.Errorf("entity_id must be a JSON scalar, got %s", data)
	}
	*id = EntityID(text)
	return nil
}

// String returns the id as text.
func (id EntityID) String() string { return string(id) }

// Instant is an event time. Decoding accepts RFC 3339 timestamps and
// zone-less ISO 8601 timestamps (interpreted as UTC), which some
// producers emit.
type Instant struct {
	time.Time
}

// zonelessLayouts are tried, in order, when RFC 3339 parsing fails.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseInstant parses text in any of the accepted timestamp forms.
func ParseInstant(text string) (Instant, error) {
	text = strings.TrimSpace(text)
	if parsed, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return Instant{parsed}, nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return Instant{parsed}, nil
		}
	}
	return Instant{}, fmt.Errorf("unrecognized timestamp %q", text)
}

// UnmarshalJSON decodes a string timestamp or a Unix epoch number
// (seconds, or milliseconds for values of 1e11 and above).
func (instant *Instant) UnmarshalJSON(data []byte) error {
	parsed, err := instantFromJSON(data)
	if err != nil {
		return err
	}
	*instant = parsed
	return nil
}

// MarshalJSON encodes the instant as an RFC 3339 string in UTC.
func (instant Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(instant.UTC().Format(time.RFC3339Nano))
}

// At returns a pointer to an Instant for t, for building records.
func At(t time.Time) *Instant {
	return &Instant{t}
}
