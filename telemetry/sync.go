// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uavlogviewer/flightlink/lib/clock"
	"github.com/uavlogviewer/flightlink/protocol"
	"github.com/uavlogviewer/flightlink/session"
)

// Sender is the connection a Syncer writes to. *session.Manager
// satisfies it.
type Sender interface {
	Send(ctx context.Context, message protocol.Message) error
	Connected() bool
}

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	Sender Sender
	Store  Store
	Clock  clock.Clock
	Logger *slog.Logger
}

// Syncer pushes telemetry snapshots to the analysis service.
type Syncer struct {
	sender Sender
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewSyncer validates config and returns a Syncer.
func NewSyncer(config SyncerConfig) (*Syncer, error) {
	if config.Sender == nil {
		return nil, fmt.Errorf("telemetry: Sender is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("telemetry: Store is required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{sender: config.Sender, store: config.Store, clock: clk, logger: logger}, nil
}

// Sync builds a snapshot and sends it as a data message. When the
// connection is down it does nothing and reports sent false: snapshots
// are not queued, the next Sync after reconnecting carries the latest
// values.
func (s *Syncer) Sync(ctx context.Context) (sent bool, err error) {
	if !s.sender.Connected() {
		s.logger.Debug("telemetry sync skipped, not connected")
		return false, nil
	}

	snapshot := BuildSnapshot(s.store)
	message, err := protocol.New(protocol.TypeData, snapshot, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("telemetry: %w", err)
	}
	if err := s.sender.Send(ctx, message); err != nil {
		// The connection can drop between the check and the write;
		// that is the same as not being connected.
		if errors.Is(err, session.ErrNotConnected) {
			return false, nil
		}
		return false, fmt.Errorf("telemetry: sending snapshot: %w", err)
	}

	s.logger.Debug("telemetry snapshot sent",
		"points", len(snapshot.Trajectory),
		"parameters", len(snapshot.Parameters),
		"attitude", snapshot.Attitude != nil,
	)
	return true, nil
}
