// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry summarizes decoded flight data for the analysis
// service.
//
// A Store supplies the latest trajectory, attitude and parameters.
// BuildSnapshot reduces it to a Snapshot, converting a quaternion
// attitude to roll, pitch and yaw when no Euler sample exists, and a
// Syncer sends the snapshot as a data message whenever the connection
// is up. Offline syncs are dropped rather than queued.
package telemetry
