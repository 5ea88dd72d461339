// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// ProtocolError reports an inbound frame that could not be
// interpreted. It is always recoverable: the frame is dropped and
// processing continues with the next one.
type ProtocolError struct {
	// Reason is a short description of what was wrong.
	Reason string
	// Frame is the offending input, kept for diagnostics.
	Frame []byte
	// Err is the underlying decode error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
