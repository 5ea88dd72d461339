// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the JSON message envelope exchanged with
// the flight-log analysis service and the payloads carried inside it.
//
// Every frame on the websocket is one envelope:
//
//	{"type": "chat", "content": "...", "timestamp": "2026-01-01T12:00:00Z"}
//
// Outbound types are chat, data, file_chunk and file_complete. Inbound
// types are chat, system, error and acknowledgment. Unknown inbound
// types decode successfully so callers can ignore them; only frames
// that are not envelopes at all produce a *ProtocolError.
//
// System messages carry status text that the service words for
// humans. ClassifySystem maps that text to a SystemStatus so the rest
// of the client never matches strings; when the service sends the
// optional "status" field the mapping is skipped entirely.
package protocol
