// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds flightlink's CBOR configuration for on-disk
// state.
//
// The wire protocol to the analysis service is JSON and lives in the
// protocol package. Local state that only flightlink itself reads,
// such as the persisted client identity, is CBOR: compact, typed, and
// encoded deterministically (RFC 8949 §4.2 core deterministic
// encoding) so rewriting unchanged state produces identical bytes.
//
// Types encoded here use `cbor` struct tags.
package codec
