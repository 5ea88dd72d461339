// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uavlogviewer/flightlink/lib/netutil"
	"github.com/uavlogviewer/flightlink/lib/version"
)

// Conn is one open, message-framed connection. ReadMessage is called
// from a single goroutine; WriteMessage and Close may be called
// concurrently with it and with each other.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens connections. The Manager uses WebSocketDialer in
// production; tests substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Timeouts and limits for WebSocketDialer.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	closeGracePeriod        = time.Second

	// MaxFrameSize bounds inbound frames. Service answers are text;
	// nothing legitimate comes close.
	MaxFrameSize = 16 << 20
)

// WebSocketDialer dials the analysis service over gorilla/websocket.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means ten
	// seconds.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write when the caller's
	// context has no deadline. Zero means thirty seconds.
	WriteTimeout time.Duration
	// Header is sent with the handshake in addition to User-Agent.
	Header http.Header
}

// Dial opens a websocket connection to url.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	header := d.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	connection, response, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if response != nil {
			defer response.Body.Close()
			return nil, fmt.Errorf("handshake rejected with %s: %s", response.Status, netutil.ErrorBody(response.Body))
		}
		return nil, err
	}
	connection.SetReadLimit(MaxFrameSize)
	return &webSocketConn{connection: connection, writeTimeout: writeTimeout}, nil
}

// webSocketConn adapts *websocket.Conn to Conn. gorilla allows one
// concurrent writer, so writes are serialized here.
type webSocketConn struct {
	connection   *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *webSocketConn) ReadMessage() ([]byte, error) {
	_, frame, err := c.connection.ReadMessage()
	return frame, err
}

func (c *webSocketConn) WriteMessage(ctx context.Context, frame []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.writeTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.connection.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.connection.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a normal-closure frame, best effort, then closes the
// underlying network connection.
func (c *webSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.connection.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(closeGracePeriod))
		err = c.connection.Close()
	})
	return err
}
