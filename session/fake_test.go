// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. The test side pushes inbound frames
// with deliver and simulates a network failure with drop.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}

	mu       sync.Mutex
	written  [][]byte
	closed   bool
	readErr  error
	doneOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case frame := <-c.inbound:
		return frame, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.readErr
	}
}

func (c *fakeConn) WriteMessage(_ context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.written = append(c.written, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.readErr == nil {
		c.readErr = net.ErrClosed
	}
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) deliver(frame string) {
	c.inbound <- []byte(frame)
}

// drop makes the pending read fail as if the peer vanished.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.readErr = errors.New("websocket: close 1006 (abnormal closure)")
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.written))
	for index, frame := range c.written {
		result[index] = string(frame)
	}
	return result
}

// fakeDialer hands out fakeConns. failures lists the outcome of each
// dial in order; dials beyond the list succeed unless failAll is set.
// When hold is set, each dial signals entered and then blocks until
// hold is closed.
type fakeDialer struct {
	hold    chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	failures []bool
	failAll  bool
	urls     []string
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	if d.hold != nil {
		d.entered <- struct{}{}
		select {
		case <-d.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	index := len(d.urls)
	d.urls = append(d.urls, url)
	fail := d.failAll
	if index < len(d.failures) {
		fail = d.failures[index]
	}
	if fail {
		return nil, errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFailAll(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAll = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no connection was opened")
	}
	return d.conns[len(d.conns)-1]
}

// statusRecorder collects every status a Manager publishes.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
	changed  chan Status
}

func recordStatuses(manager *Manager) *statusRecorder {
	recorder := &statusRecorder{changed: make(chan Status, 256)}
	manager.OnStatus(func(status Status) {
		recorder.mu.Lock()
		recorder.statuses = append(recorder.statuses, status)
		recorder.mu.Unlock()
		recorder.changed <- status
	})
	return recorder
}

// waitFor blocks until a status in state is published.
func (r *statusRecorder) waitFor(t *testing.T, state State) Status {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case status := <-r.changed:
			if status.State == state {
				return status
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", state)
		}
	}
}

func (r *statusRecorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}
