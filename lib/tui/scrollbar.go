// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar produces a single-column scrollbar of the given
// height for content of totalLines, of which visibleLines are shown
// starting at offset. When the content fits, nothing but track is
// drawn.
func RenderScrollbar(theme Theme, height, totalLines, visibleLines, offset int) string {
	if height <= 0 {
		return ""
	}

	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(theme.FaintText)

	lines := make([]string, height)
	if totalLines <= visibleLines || totalLines <= 0 {
		for index := range lines {
			lines[index] = trackStyle.Render("│")
		}
		return strings.Join(lines, "\n")
	}

	thumbSize := max(height*visibleLines/totalLines, 1)
	scrollableRange := totalLines - visibleLines
	trackRange := height - thumbSize
	thumbOffset := 0
	if trackRange > 0 {
		thumbOffset = min(offset, scrollableRange) * trackRange / scrollableRange
	}

	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumbStyle.Render("┃")
		} else {
			lines[index] = trackStyle.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}
