// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	TaskID   string `cbor:"task_id"`
	Progress *int   `cbor:"progress,omitempty"`
}

func TestEncoderSequence(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	progress := 40
	for _, item := range []sample{{TaskID: "a", Progress: &progress}, {TaskID: "b"}} {
		if err := encoder.Encode(item); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	var first, second sample
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if first.TaskID != "a" || first.Progress == nil || *first.Progress != 40 {
		t.Errorf("first = %+v", first)
	}
	if second.TaskID != "b" || second.Progress != nil {
		t.Errorf("second = %+v", second)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	a, err := Marshal(map[string]any{"z": 1, "a": 2, "m": 3})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(map[string]any{"m": 3, "z": 1, "a": 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("encodings differ: %x vs %x", a, b)
	}
}

func TestDecodeAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"status": "SUCCESS"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if object["status"] != "SUCCESS" {
		t.Fatalf("status = %v", object["status"])
	}
}
