// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal building blocks shared by
// flightlink's interactive views: the color theme, a scrollbar, and a
// markdown renderer for analysis answers.
//
// Rendering is pure string production. Views built on bubbletea own
// their layout and call into this package for styled text.
package tui
