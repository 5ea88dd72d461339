// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for flightlink's terminal views. All
// colors use lipgloss ANSI 256-color codes for broad terminal
// compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Chat history, by entry origin.
	UserForeground   lipgloss.Color
	ServerForeground lipgloss.Color
	SystemForeground lipgloss.Color
	ErrorForeground  lipgloss.Color

	// Connection states.
	StatusConnected    lipgloss.Color
	StatusConnecting   lipgloss.Color
	StatusDisconnected lipgloss.Color
	StatusFailed       lipgloss.Color

	// Activity indicator (processing, uploading).
	BusyForeground lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	LinkForeground   lipgloss.Color
}

// DefaultTheme is the built-in scheme for 256-color terminals with a
// dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	UserForeground:   lipgloss.Color("75"),  // blue
	ServerForeground: lipgloss.Color("252"), // same as NormalText
	SystemForeground: lipgloss.Color("141"), // light purple
	ErrorForeground:  lipgloss.Color("196"), // red

	StatusConnected:    lipgloss.Color("114"), // green
	StatusConnecting:   lipgloss.Color("220"), // amber
	StatusDisconnected: lipgloss.Color("245"), // gray
	StatusFailed:       lipgloss.Color("196"), // red

	BusyForeground: lipgloss.Color("220"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	LinkForeground:   lipgloss.Color("75"),
}
