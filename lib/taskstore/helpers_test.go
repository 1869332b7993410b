// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"encoding/json"
	"testing"
)

func mustDecode(t *testing.T, payload string, target any) {
	t.Helper()
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		t.Fatalf("decoding %s: %v", payload, err)
	}
}
