// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lattice-ml/lattice/lib/schema/task"
)

// Theme defines the color palette for task status output. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Status colors.
	StatusQueued  lipgloss.Color // PENDING, RECEIVED
	StatusActive  lipgloss.Color // STARTED, RUNNING
	StatusRetry   lipgloss.Color
	StatusSuccess lipgloss.Color
	StatusFailed  lipgloss.Color
	StatusRevoked lipgloss.Color

	// Connection health.
	Healthy   lipgloss.Color
	Unhealthy lipgloss.Color

	// Progress bar fill.
	ProgressFill lipgloss.Color
}

// StatusColor returns the color for a task status. Unknown statuses
// return FaintText.
func (theme Theme) StatusColor(status task.Status) lipgloss.Color {
	switch {
	case status.Is(task.StatusPending), status.Is(task.StatusReceived):
		return theme.StatusQueued
	case status.Active():
		return theme.StatusActive
	case status.Is(task.StatusRetry):
		return theme.StatusRetry
	case status.Is(task.StatusSuccess):
		return theme.StatusSuccess
	case status.Is(task.StatusFailed):
		return theme.StatusFailed
	case status.Is(task.StatusRevoked):
		return theme.StatusRevoked
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	StatusQueued:  lipgloss.Color("75"),  // blue
	StatusActive:  lipgloss.Color("220"), // yellow/amber
	StatusRetry:   lipgloss.Color("208"), // orange
	StatusSuccess: lipgloss.Color("114"), // green
	StatusFailed:  lipgloss.Color("196"), // red
	StatusRevoked: lipgloss.Color("141"), // light purple

	Healthy:   lipgloss.Color("114"),
	Unhealthy: lipgloss.Color("196"),

	ProgressFill: lipgloss.Color("75"),
}
