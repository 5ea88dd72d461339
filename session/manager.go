// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uavlogviewer/flightlink/lib/clock"
	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/lib/netutil"
	"github.com/uavlogviewer/flightlink/protocol"
)

// DialTimeout bounds each automatic reconnect attempt.
const DialTimeout = 15 * time.Second

// Config configures a Manager.
type Config struct {
	// Endpoint is the service's websocket base URL, for example
	// "ws://localhost:8000/ws". The client id is appended as the
	// last path segment.
	Endpoint string

	// ClientID identifies this session to the service. If empty, a
	// random id is assigned on the first Connect and reused for every
	// reconnect.
	ClientID string

	// Policy bounds automatic reconnection. Zero fields take the
	// DefaultPolicy values.
	Policy Policy

	// Dialer opens connections. Nil means WebSocketDialer{}.
	Dialer Dialer

	// Clock drives the backoff timer. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives lifecycle logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Manager owns the connection to the analysis service: it dials,
// reconnects on loss according to its Policy, and closes on request.
// It is the only writer of connection state and the only holder of
// the socket.
//
// Inbound frames are delivered to OnFrame subscribers from a single
// reader goroutine per connection, in arrival order. Status changes
// are delivered to OnStatus subscribers in transition order. Handlers
// must not call Connect or Disconnect synchronously.
type Manager struct {
	endpoint string
	policy   Policy
	dialer   Dialer
	clock    clock.Clock
	logger   *slog.Logger

	// lifetime is cancelled by Close and bounds automatic reconnects.
	lifetime       context.Context
	cancelLifetime context.CancelFunc

	mu       sync.Mutex
	status   Status
	clientID string
	conn     Conn
	// generation increases on every dial and every Disconnect. A dial
	// or reader that finds the generation moved on discards its result.
	generation uint64
	retryTimer *clock.Timer
	// attempt is the dial in flight while Connecting, or nil.
	attempt *dialAttempt
	// pending holds status changes not yet delivered, in order.
	pending []Status

	// notifyMu serializes delivery so subscribers observe statuses in
	// the order transitions happened.
	notifyMu sync.Mutex
	statuses event.Bus[Status]
	frames   event.Bus[[]byte]

	readers sync.WaitGroup
}

// NewManager validates config and returns a Disconnected Manager.
func NewManager(config Config) (*Manager, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("session: Endpoint is required")
	}
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("session: invalid Endpoint %q: %w", config.Endpoint, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("session: Endpoint %q must use ws or wss", config.Endpoint)
	}

	policy := config.Policy
	if policy.MaxReconnectAttempts <= 0 {
		policy.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = DefaultBackoff
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Manager{
		endpoint:       strings.TrimRight(config.Endpoint, "/"),
		policy:         policy,
		dialer:         dialer,
		clock:          clk,
		logger:         logger,
		lifetime:       lifetime,
		cancelLifetime: cancel,
		clientID:       config.ClientID,
	}, nil
}

// ClientID returns the session's client id, or "" before the first
// Connect when none was configured.
func (m *Manager) ClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// URL returns the endpoint the Manager dials, including the client id.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urlLocked()
}

func (m *Manager) urlLocked() string {
	return m.endpoint + "/" + url.PathEscape(m.clientID)
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected reports whether the state is Connected.
func (m *Manager) Connected() bool {
	return m.Status().State == Connected
}

// OnStatus subscribes to status changes.
func (m *Manager) OnStatus(handler func(Status)) *event.Subscription {
	return m.statuses.Subscribe(handler)
}

// OnFrame subscribes to inbound frames.
func (m *Manager) OnFrame(handler func([]byte)) *event.Subscription {
	return m.frames.Subscribe(handler)
}

// Connect opens the connection. It returns nil immediately when
// already Connected. While Connecting it waits for the dial in flight
// and returns that dial's result. A failed dial is returned as
// *ConnectionError and also feeds the retry policy, so the Manager
// keeps trying in the background until it reconnects or gives up.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	next, action := Transition(m.status, EventConnect, m.policy)
	if action != ActionDial {
		connecting := m.status.State == Connecting
		attempt := m.attempt
		m.mu.Unlock()
		switch {
		case attempt != nil:
			return attempt.wait(ctx)
		case connecting:
			return &ConnectionError{Op: "connect", Err: ErrConnectInProgress}
		}
		return nil
	}
	m.stopRetryLocked()
	if m.clientID == "" {
		m.clientID = uuid.NewString()
	}
	m.generation++
	generation := m.generation
	attempt := m.startAttemptLocked()
	m.setStatusLocked(next)
	m.mu.Unlock()
	m.flush()

	return m.runAttempt(ctx, generation, attempt)
}

// Disconnect closes the connection if one is open, cancels any pending
// reconnect, and leaves the Manager Disconnected.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	next, _ := Transition(m.status, EventDisconnect, m.policy)
	m.stopRetryLocked()
	m.generation++
	conn := m.conn
	m.conn = nil
	m.setStatusLocked(next)
	m.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		m.logger.Info("disconnected", "url", m.URL())
	}
	m.flush()
	return err
}

// Close disconnects, stops automatic reconnection for good, and waits
// for the reader goroutine to exit.
func (m *Manager) Close() error {
	m.cancelLifetime()
	err := m.Disconnect()
	m.readers.Wait()
	return err
}

// Send writes message on the current connection. The state is checked
// at the moment of sending; callers that awaited something in between
// get *ConnectionError wrapping ErrNotConnected if the connection went
// away meanwhile.
func (m *Manager) Send(ctx context.Context, message protocol.Message) error {
	frame, err := message.Encode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	connected := m.status.State == Connected
	m.mu.Unlock()

	if !connected || conn == nil {
		return &ConnectionError{Op: "send", Err: ErrNotConnected}
	}
	if err := conn.WriteMessage(ctx, frame); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}

// dial runs one connection attempt for generation and applies its
// outcome to the state machine.
func (m *Manager) dial(ctx context.Context, generation uint64) error {
	target := m.URL()
	conn, dialErr := m.dialer.Dial(ctx, target)

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return &ConnectionError{Op: "connect", URL: target, Err: ErrAbandoned}
	}

	if dialErr != nil {
		next, action := Transition(m.status, EventLost, m.policy)
		m.applyLossLocked(next, action)
		m.mu.Unlock()
		m.flush()
		m.logLoss("connection attempt failed", next, dialErr)
		return &ConnectionError{Op: "connect", URL: target, Err: dialErr}
	}

	next, _ := Transition(m.status, EventOpened, m.policy)
	m.conn = conn
	m.setStatusLocked(next)
	m.readers.Add(1)
	go m.readLoop(conn, generation)
	m.mu.Unlock()
	m.flush()

	m.logger.Info("connected", "url", target)
	return nil
}

// readLoop delivers frames from conn until it fails.
func (m *Manager) readLoop(conn Conn, generation uint64) {
	defer m.readers.Done()
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			m.connectionLost(conn, generation, err)
			return
		}
		m.frames.Publish(frame)
	}
}

// connectionLost handles a read failure. Failures on a connection that
// Disconnect already replaced are the expected result of closing it.
func (m *Manager) connectionLost(conn Conn, generation uint64, cause error) {
	m.mu.Lock()
	if generation != m.generation || m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	next, action := Transition(m.status, EventLost, m.policy)
	m.applyLossLocked(next, action)
	m.mu.Unlock()

	conn.Close()
	m.flush()
	m.logLoss("connection lost", next, cause)
}

// applyLossLocked records a loss transition and arms the retry timer
// when the policy allows another attempt.
func (m *Manager) applyLossLocked(next Status, action Action) {
	m.setStatusLocked(next)
	if action != ActionScheduleRetry {
		return
	}
	generation := m.generation
	m.retryTimer = m.clock.AfterFunc(m.policy.Backoff, func() {
		m.retry(generation)
	})
}

// retry is the backoff timer's callback.
func (m *Manager) retry(generation uint64) {
	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		return
	}
	next, action := Transition(m.status, EventBackoffElapsed, m.policy)
	if action != ActionDial {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.generation++
	dialGeneration := m.generation
	attempt := m.startAttemptLocked()
	m.setStatusLocked(next)
	m.mu.Unlock()
	m.flush()

	m.logger.Info("reconnecting", "attempt", next.Attempts, "max_attempts", m.policy.MaxReconnectAttempts)

	ctx, cancel := context.WithTimeout(m.lifetime, DialTimeout)
	defer cancel()
	// The outcome is applied to the state machine and logged by dial.
	_ = m.runAttempt(ctx, dialGeneration, attempt)
}

// dialAttempt lets Connect calls made while Connecting share the
// result of the dial in flight.
type dialAttempt struct {
	done chan struct{}
	err  error
}

func (a *dialAttempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return &ConnectionError{Op: "connect", Err: ctx.Err()}
	}
}

func (m *Manager) startAttemptLocked() *dialAttempt {
	attempt := &dialAttempt{done: make(chan struct{})}
	m.attempt = attempt
	return attempt
}

// runAttempt dials and then releases everyone waiting on attempt.
func (m *Manager) runAttempt(ctx context.Context, generation uint64, attempt *dialAttempt) error {
	err := m.dial(ctx, generation)

	m.mu.Lock()
	if m.attempt == attempt {
		m.attempt = nil
	}
	m.mu.Unlock()

	attempt.err = err
	close(attempt.done)
	return err
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// setStatusLocked records next and queues it for delivery if it
// differs from the current status.
func (m *Manager) setStatusLocked(next Status) {
	if next == m.status {
		return
	}
	m.status = next
	m.pending = append(m.pending, next)
}

// flush delivers queued status changes in order.
func (m *Manager) flush() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, status := range pending {
		m.statuses.Publish(status)
	}
}

func (m *Manager) logLoss(message string, next Status, cause error) {
	level := slog.LevelWarn
	if netutil.IsExpectedCloseError(cause) {
		level = slog.LevelInfo
	}
	switch next.State {
	case Reconnecting:
		m.logger.Log(context.Background(), level, message,
			"error", cause,
			"attempt", next.Attempts,
			"max_attempts", m.policy.MaxReconnectAttempts,
			"backoff", m.policy.Backoff,
			"peer_reset", netutil.IsConnectionReset(cause),
		)
	case Failed:
		m.logger.Error(message+", giving up",
			"error", cause,
			"attempts", next.Attempts,
		)
	}
}
