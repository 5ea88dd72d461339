// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package client composes the connection, router, uploader and
// telemetry syncer into the single object a log viewer talks to.
//
// The host application drives it with three inputs: a file-ready
// event (NotifyFileReady), telemetry changes (NotifyTelemetryChanged,
// or automatically when the store publishes changes), and user chat
// (SendChat). Everything the user should see comes back as router
// updates.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/uavlogviewer/flightlink/lib/clock"
	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/protocol"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
	"github.com/uavlogviewer/flightlink/telemetry"
	"github.com/uavlogviewer/flightlink/upload"
)

// ErrChatDisabled is returned by SendChat while chat input is
// disabled: during an upload or after the connection failed.
var ErrChatDisabled = errors.New("client: chat is disabled")

// changeNotifier is implemented by stores that announce updates, such
// as *telemetry.MemoryStore.
type changeNotifier interface {
	OnChange(handler func()) *event.Subscription
}

// Config configures a Client.
type Config struct {
	// Session configures the connection. Its Clock and Logger default
	// to the Client's.
	Session session.Config

	// Telemetry is optional. When it also publishes change
	// notifications, every change triggers a sync.
	Telemetry telemetry.Store

	// UploadThrottle overrides upload.DefaultThrottle.
	UploadThrottle time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is one viewer session with the analysis service.
type Client struct {
	manager  *session.Manager
	router   *router.Router
	uploader *upload.Uploader
	syncer   *telemetry.Syncer
	clock    clock.Clock
	logger   *slog.Logger

	lifetime       context.Context
	cancelLifetime context.CancelFunc

	fileReady        event.Bus[upload.Source]
	telemetryChanged event.Bus[struct{}]
	subscriptions    event.Group

	// syncSignal wakes the sync worker. It holds at most one request,
	// so a burst of changes collapses into one sync of the latest
	// values.
	syncSignal chan struct{}

	// work tracks uploads started from event handlers and the sync
	// worker.
	work      sync.WaitGroup
	closeOnce sync.Once
}

// New builds a Client. It does not connect.
func New(config Config) (*Client, error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionConfig := config.Session
	if sessionConfig.Clock == nil {
		sessionConfig.Clock = clk
	}
	if sessionConfig.Logger == nil {
		sessionConfig.Logger = logger.With("component", "session")
	}
	manager, err := session.NewManager(sessionConfig)
	if err != nil {
		return nil, err
	}

	chatRouter := router.New(router.Config{Clock: clk, Logger: logger.With("component", "router")})
	uploader, err := upload.New(upload.Config{
		Sender:   manager,
		Observer: chatRouter,
		Throttle: config.UploadThrottle,
		Clock:    clk,
		Logger:   logger.With("component", "upload"),
	})
	if err != nil {
		return nil, err
	}

	lifetime, cancel := context.WithCancel(context.Background())
	client := &Client{
		manager:        manager,
		router:         chatRouter,
		uploader:       uploader,
		clock:          clk,
		logger:         logger,
		lifetime:       lifetime,
		cancelLifetime: cancel,
		syncSignal:     make(chan struct{}, 1),
	}

	if config.Telemetry != nil {
		client.syncer, err = telemetry.NewSyncer(telemetry.SyncerConfig{
			Sender: manager,
			Store:  config.Telemetry,
			Clock:  clk,
			Logger: logger.With("component", "telemetry"),
		})
		if err != nil {
			cancel()
			return nil, err
		}
		if notifier, ok := config.Telemetry.(changeNotifier); ok {
			client.subscriptions.Add(notifier.OnChange(client.NotifyTelemetryChanged))
		}
	}

	client.subscriptions.Add(manager.OnFrame(chatRouter.HandleFrame))
	client.subscriptions.Add(manager.OnStatus(client.statusChanged))
	client.subscriptions.Add(client.fileReady.Subscribe(client.startUpload))
	client.subscriptions.Add(client.telemetryChanged.Subscribe(func(struct{}) { client.startSync() }))

	if client.syncer != nil {
		client.work.Add(1)
		go client.syncLoop()
	}
	return client, nil
}

// Router returns the chat state owner. Subscribe to it to render.
func (c *Client) Router() *router.Router { return c.router }

// Status returns the connection status.
func (c *Client) Status() session.Status { return c.manager.Status() }

// ClientID returns the session's client id.
func (c *Client) ClientID() string { return c.manager.ClientID() }

// OnStatus subscribes to connection status changes.
func (c *Client) OnStatus(handler func(session.Status)) *event.Subscription {
	return c.manager.OnStatus(handler)
}

// UploadProgress returns the state of the most recent upload.
func (c *Client) UploadProgress() upload.Progress { return c.uploader.Progress() }

// Connect opens the connection. See session.Manager.Connect.
func (c *Client) Connect(ctx context.Context) error {
	return c.manager.Connect(ctx)
}

// Disconnect closes the connection and cancels reconnection.
func (c *Client) Disconnect() error {
	return c.manager.Disconnect()
}

// SendChat sends text as a chat message and records it in history.
// It returns ErrChatDisabled while chat is disabled; a failed send is
// also recorded in history for the user.
func (c *Client) SendChat(ctx context.Context, text string) error {
	if !c.router.State().ChatEnabled {
		return ErrChatDisabled
	}
	// Record first so the service's reply can never precede the
	// question in history.
	c.router.UserMessage(text)
	if err := c.manager.Send(ctx, protocol.NewChat(text, c.clock.Now())); err != nil {
		c.router.SendFailed(err)
		return err
	}
	return nil
}

// Upload connects if necessary and streams source, blocking until the
// transfer finishes. Every failure is reported in history as well: an
// upload refused before it started, including one refused because
// another upload is sending, is recorded here, and the router records
// failures after the transfer started.
func (c *Client) Upload(ctx context.Context, source upload.Source) error {
	if !c.manager.Connected() {
		if err := c.manager.Connect(ctx); err != nil {
			c.router.UploadRejected(source.Name, err)
			return err
		}
	}
	err := c.uploader.Upload(ctx, source)
	var uploadErr *upload.UploadError
	if err != nil && !errors.As(err, &uploadErr) {
		c.router.UploadRejected(source.Name, err)
	}
	return err
}

// NotifyFileReady publishes a file-ready event. The upload runs in the
// background; progress and failure show up in router updates.
func (c *Client) NotifyFileReady(source upload.Source) {
	c.fileReady.Publish(source)
}

// NotifyTelemetryChanged publishes a telemetry-changed event. The sync
// runs in the background and is skipped while disconnected.
func (c *Client) NotifyTelemetryChanged() {
	c.telemetryChanged.Publish(struct{}{})
}

// Close releases every subscription, cancels background uploads and
// the sync worker, waits for them, and then closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.subscriptions.Close()
		c.cancelLifetime()
		c.work.Wait()
		err = c.manager.Close()
	})
	return err
}

func (c *Client) startUpload(source upload.Source) {
	if c.lifetime.Err() != nil {
		return
	}
	c.work.Add(1)
	go func() {
		defer c.work.Done()
		if err := c.Upload(c.lifetime, source); err != nil {
			c.logger.Warn("upload did not complete", "file", source.Name, "error", err)
		}
	}()
}

// startSync asks the sync worker for a sync without blocking. A
// request made while one is already queued is absorbed by it.
func (c *Client) startSync() {
	if c.syncer == nil {
		return
	}
	select {
	case c.syncSignal <- struct{}{}:
	default:
	}
}

// syncLoop runs syncs one at a time, so snapshots reach the service in
// the order they were built and the last one sent reflects the latest
// state.
func (c *Client) syncLoop() {
	defer c.work.Done()
	for {
		select {
		case <-c.lifetime.Done():
			return
		case <-c.syncSignal:
		}
		if _, err := c.syncer.Sync(c.lifetime); err != nil {
			c.logger.Warn("telemetry sync failed", "error", err)
		}
	}
}

// statusChanged forwards status to the router and pushes telemetry
// after every successful connect, so the service always holds the
// latest snapshot.
func (c *Client) statusChanged(status session.Status) {
	c.router.ConnectionStatus(status)
	if status.State == session.Connected {
		c.startSync()
	}
}
