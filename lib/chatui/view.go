// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/uavlogviewer/flightlink/lib/tui"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
)

// clientIDDisplayLength is how much of the client id the status bar
// shows.
const clientIDDisplayLength = 8

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "connecting to the analysis service…"
	}
	history := lipgloss.JoinHorizontal(lipgloss.Top,
		model.viewport.View(),
		tui.RenderScrollbar(model.theme, model.viewport.Height,
			model.viewport.TotalLineCount(), model.viewport.Height, model.viewport.YOffset),
	)
	return lipgloss.JoinVertical(lipgloss.Left, history, model.statusBar(), model.input.View())
}

func (model Model) historyContent() string {
	if len(model.rendered) == 0 {
		hint := "Ask a question about the flight, or /upload <path> to send a log."
		return lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(hint)
	}
	return strings.Join(model.rendered, "\n\n")
}

// renderEntry renders one history entry wrapped to width. Answers from
// the service are markdown.
func renderEntry(entry router.Entry, theme tui.Theme, width int) string {
	switch entry.Origin {
	case router.OriginUser:
		style := lipgloss.NewStyle().Foreground(theme.UserForeground)
		return style.Render(ansi.Wrap("› "+entry.Text, width, " "))

	case router.OriginServer:
		return tui.RenderMarkdown(entry.Text, theme, width)

	default:
		color := theme.SystemForeground
		if strings.HasPrefix(entry.Text, router.ErrorPrefix) {
			color = theme.ErrorForeground
		}
		style := lipgloss.NewStyle().Foreground(color).Italic(true)
		return style.Render(ansi.Wrap(entry.Text, width, " "))
	}
}

// statusBar shows the connection state, what the service is busy with,
// and the current notice, with the client id on the right.
func (model Model) statusBar() string {
	parts := []string{model.connectionLabel()}
	if activity := activityLabel(model.state); activity != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.BusyForeground).Render(activity))
	}
	if model.notice.text != "" {
		color := model.theme.FaintText
		if model.notice.isErr {
			color = model.theme.ErrorForeground
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(color).Render(model.notice.text))
	}
	left := strings.Join(parts, "  ")

	right := ""
	if id := model.clientID; id != "" {
		if len(id) > clientIDDisplayLength {
			id = id[:clientIDDisplayLength]
		}
		right = lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(id)
	}

	gap := model.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return ansi.Truncate(left, model.width, "…")
	}
	return left + strings.Repeat(" ", gap) + right
}

func (model Model) connectionLabel() string {
	theme := model.theme
	var color lipgloss.Color
	var label string
	switch model.status.State {
	case session.Connected:
		color, label = theme.StatusConnected, "● connected"
	case session.Connecting:
		color, label = theme.StatusConnecting, "○ connecting"
	case session.Reconnecting:
		color, label = theme.StatusConnecting, fmt.Sprintf("○ reconnecting (attempt %d)", model.status.Attempts)
	case session.Failed:
		color, label = theme.StatusFailed, "✕ disconnected, /reconnect to retry"
	default:
		color, label = theme.StatusDisconnected, "○ disconnected"
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

// activityLabel describes what the service is doing for us, if
// anything. Upload outranks processing because it comes first.
func activityLabel(state router.ChatState) string {
	switch {
	case state.UploadingFile:
		return "uploading log…"
	case state.ProcessingFile:
		return "processing log…"
	case state.ProcessingQuestion:
		return "thinking…"
	default:
		return ""
	}
}
