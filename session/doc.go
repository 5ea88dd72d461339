// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages the persistent connection between the log
// viewer and the analysis service.
//
// A Manager dials ws://host:port/ws/<clientId>, delivers inbound
// frames to subscribers in arrival order, and writes outbound
// protocol messages. When the connection drops without the client
// asking for it, the Manager waits a fixed backoff and dials again,
// up to a bounded number of attempts:
//
//	Disconnected --Connect--> Connecting --opened--> Connected
//	Connected --lost--> Reconnecting --backoff--> Connecting
//	Connecting --lost, attempts exhausted--> Failed
//	any --Disconnect--> Disconnected
//
// The policy is the pure function Transition; the Manager only
// performs the effects it returns (dial, arm the timer, close). Time
// comes from an injected clock.Clock so tests drive the backoff
// deterministically.
//
// The client id is generated once and reused for every reconnect.
// LoadOrCreateIdentity persists it across process restarts.
package session
