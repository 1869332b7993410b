// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lattice-ml/lattice/lib/schema/task"
)

// Renderer formats task status fragments.
type Renderer struct {
	theme  Theme
	styled bool
}

// NewRenderer returns a Renderer. With styled false every method
// returns plain text.
func NewRenderer(theme Theme, styled bool) *Renderer {
	return &Renderer{theme: theme, styled: styled}
}

// StatusBadge renders a status as a fixed-width label. A missing
// status renders as "UNKNOWN".
func (r *Renderer) StatusBadge(status task.Status) string {
	label := string(status.Canonical())
	if label == "" {
		label = "UNKNOWN"
	}
	label = fmt.Sprintf("%-8s", label)
	if !r.styled {
		return label
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(r.theme.StatusColor(status)).
		Render(label)
}

// ProgressBar renders percent (clamped to 0-100) as a bar of width
// cells followed by the number.
func (r *Renderer) ProgressBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	if width < 1 {
		width = 1
	}
	filled := percent * width / 100
	bar := strings.Repeat("#", filled)
	rest := strings.Repeat(".", width-filled)
	if r.styled {
		bar = lipgloss.NewStyle().Foreground(r.theme.ProgressFill).Render(strings.Repeat("█", filled))
		rest = lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(strings.Repeat("░", width-filled))
	}
	return fmt.Sprintf("%s%s %3d%%", bar, rest, percent)
}

// Health renders the push connection health.
func (r *Renderer) Health(healthy bool) string {
	label, color := "disconnected", r.theme.Unhealthy
	if healthy {
		label, color = "connected", r.theme.Healthy
	}
	if !r.styled {
		return label
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// Faint renders secondary text.
func (r *Renderer) Faint(text string) string {
	if !r.styled || text == "" {
		return text
	}
	return lipgloss.NewStyle().Foreground(r.theme.FaintText).Render(text)
}
