// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network helpers shared by the session
// layer: bounded JSON response decoding for the service's HTTP
// endpoints, and classification of connection errors that are part of
// a normal shutdown rather than a failure worth reconnecting over.
package netutil
