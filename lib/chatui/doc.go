// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the interactive terminal view of a flightlink
// session, built on bubbletea.
//
// The view renders the router's chat history in a scrolling viewport,
// with answers from the analysis service rendered as markdown. Below
// it are a status bar (connection state, what the service is busy
// with) and the chat input. Lines starting with a slash are commands:
//
//	/upload <path>   stream a flight log to the service
//	/reconnect       connect again after the connection failed
//	/quit            leave
//
// Router updates and status changes arrive on client goroutines. A
// feed coalesces them so publishers never wait on the UI loop, and the
// loop always renders the latest state.
package chatui
