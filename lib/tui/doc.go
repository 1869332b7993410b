// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui renders task status for terminals: a color theme keyed
// by task status, and a [Renderer] that produces status badges,
// progress bars and connection health labels with lipgloss.
//
// A Renderer built with styling disabled emits plain ASCII, so command
// output stays stable when piped or captured in tests.
package tui
