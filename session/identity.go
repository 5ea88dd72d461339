// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/uavlogviewer/flightlink/lib/codec"
)

// Identity is the persisted client identity. Keeping it on disk makes
// the client id stable across process restarts, so the service sees
// one client instead of a new one per launch.
type Identity struct {
	ClientID  string `cbor:"client_id"`
	CreatedAt int64  `cbor:"created_at"`
}

// Created returns CreatedAt as a time.
func (i Identity) Created() time.Time {
	return time.Unix(i.CreatedAt, 0).UTC()
}

// LoadOrCreateIdentity reads the identity file at path, creating it
// with a fresh random client id if it does not exist. A file that
// exists but cannot be decoded or has an empty id is an error rather
// than being silently replaced.
func LoadOrCreateIdentity(path string, now time.Time) (Identity, error) {
	var identity Identity
	err := codec.ReadFile(path, &identity)
	switch {
	case err == nil:
		if identity.ClientID == "" {
			return Identity{}, fmt.Errorf("session: identity file %s has no client id", path)
		}
		return identity, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Identity{}, fmt.Errorf("session: reading identity: %w", err)
	}

	identity = Identity{
		ClientID:  uuid.NewString(),
		CreatedAt: now.Unix(),
	}
	if err := codec.WriteFile(path, identity); err != nil {
		return Identity{}, fmt.Errorf("session: writing identity: %w", err)
	}
	return identity, nil
}
