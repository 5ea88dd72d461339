// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

// IsExpectedCloseError reports whether err ends a websocket session
// cleanly: a normal or going-away close frame, EOF, or a read on a
// connection this process already closed.
//
// Abnormal closures (1006), resets, and protocol errors are not
// expected and should drive a reconnect.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// IsConnectionReset reports whether err is a reset or broken pipe from
// the peer.
func IsConnectionReset(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
