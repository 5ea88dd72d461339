// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when the session is not in
	// the Connected state.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectInProgress is returned by Connect when the state is
	// Connecting but no dial it could wait for is registered.
	ErrConnectInProgress = errors.New("connection attempt already in progress")

	// ErrAbandoned is returned by Connect when Disconnect or a newer
	// Connect superseded the dial before it completed.
	ErrAbandoned = errors.New("connection attempt abandoned")
)

// ConnectionError reports a transport-level failure: a failed dial, a
// failed write, or an operation attempted while disconnected. Callers
// use errors.As to distinguish it from upload and protocol errors:
//
//	var connectionErr *session.ConnectionError
//	if errors.As(err, &connectionErr) { ... }
type ConnectionError struct {
	// Op is the operation that failed: "connect" or "send".
	Op string
	// URL is the endpoint, when known.
	URL string
	// Err is the underlying cause.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("session: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
