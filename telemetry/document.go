// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/tidwall/jsonc"
)

// Document is the on-disk telemetry format read by LoadFile. It is
// JSON extended with comments and trailing commas:
//
//	{
//	  // [lat, lon, alt]
//	  "trajectory": [[-35.3632, 149.1652, 584.1], [-35.3633, 149.1651, 590.0]],
//	  "attitude": {"roll": 0.01, "pitch": -0.02, "yaw": 1.57},
//	  "quaternion": [0.707, 0.0, 0.0, 0.707],
//	  "parameters": {"ARMING_CHECK": 1, "WPNAV_SPEED": 500},
//	}
type Document struct {
	Trajectory []Point            `json:"trajectory"`
	Attitude   *Euler             `json:"attitude"`
	Quaternion []float64          `json:"quaternion"`
	Parameters map[string]float64 `json:"parameters"`
}

// Parse strips comments and trailing commas from data and decodes the
// result.
func Parse(data []byte) (*Document, error) {
	var document Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing telemetry: %w", err)
	}
	if document.Quaternion != nil && len(document.Quaternion) != 4 {
		return nil, fmt.Errorf("parsing telemetry: quaternion has %d values, want 4", len(document.Quaternion))
	}
	return &document, nil
}

// LoadFile reads a telemetry document into a new MemoryStore.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	document, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	store := NewMemoryStore()
	store.Apply(document)
	return store, nil
}

// Apply replaces the contents of s with document. Fields the document
// leaves out are cleared, and subscribers are notified once.
func (s *MemoryStore) Apply(document *Document) {
	var euler *Euler
	if document.Attitude != nil {
		attitude := *document.Attitude
		euler = &attitude
	}
	var quaternion *Quaternion
	if q := document.Quaternion; len(q) == 4 {
		quaternion = &Quaternion{Q1: q[0], Q2: q[1], Q3: q[2], Q4: q[3]}
	}
	parameters := maps.Clone(document.Parameters)
	if parameters == nil {
		parameters = make(map[string]float64)
	}

	s.mu.Lock()
	s.trajectory = slices.Clone(document.Trajectory)
	s.euler = euler
	s.quaternion = quaternion
	s.parameters = parameters
	s.mu.Unlock()
	s.changes.Publish(struct{}{})
}
