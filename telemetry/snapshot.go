// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Point is one trajectory fix. It encodes as [lat, lon, alt].
type Point struct {
	Latitude  float64
	Longitude float64
	// Altitude is in metres.
	Altitude float64
}

// MarshalJSON encodes p as a three-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.Latitude, p.Longitude, p.Altitude})
}

// UnmarshalJSON decodes a three-element array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("trajectory point: %w", err)
	}
	if len(values) != 3 {
		return fmt.Errorf("trajectory point has %d values, want [lat, lon, alt]", len(values))
	}
	*p = Point{Latitude: values[0], Longitude: values[1], Altitude: values[2]}
	return nil
}

// Euler is an attitude in radians.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Quaternion is an attitude quaternion with Q1 the scalar part, the
// order flight controllers log it in.
type Quaternion struct {
	Q1, Q2, Q3, Q4 float64
}

// QuaternionToEuler converts q to roll, pitch and yaw:
//
//	roll  = atan2(2(q1q2 + q3q4), 1 - 2(q2² + q3²))
//	pitch = asin(2(q1q3 - q4q2))
//	yaw   = atan2(2(q1q4 + q2q3), 1 - 2(q3² + q4²))
//
// The asin argument is clamped to [-1, 1] so rounding on a
// near-vertical attitude yields ±π/2 rather than NaN.
func QuaternionToEuler(q Quaternion) Euler {
	roll := math.Atan2(2*(q.Q1*q.Q2+q.Q3*q.Q4), 1-2*(q.Q2*q.Q2+q.Q3*q.Q3))
	sinPitch := max(-1, min(1, 2*(q.Q1*q.Q3-q.Q4*q.Q2)))
	pitch := math.Asin(sinPitch)
	yaw := math.Atan2(2*(q.Q1*q.Q4+q.Q2*q.Q3), 1-2*(q.Q3*q.Q3+q.Q4*q.Q4))
	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// Parameter is one named scalar. It encodes as [name, value].
type Parameter struct {
	Name  string
	Value float64
}

// MarshalJSON encodes p as a two-element array.
func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Name, p.Value})
}

// Snapshot is the content of a data message.
type Snapshot struct {
	Trajectory []Point `json:"trajectory"`
	// Attitude is nil when the store has neither an Euler nor a
	// quaternion sample.
	Attitude   *Euler      `json:"attitude"`
	Parameters []Parameter `json:"parameters"`
}

// Store supplies the latest telemetry. Implementations return copies
// the caller may keep.
type Store interface {
	Trajectory() []Point
	// Euler returns the most recent Euler attitude sample.
	Euler() (Euler, bool)
	// Quaternion returns the most recent attitude quaternion.
	Quaternion() (Quaternion, bool)
	Parameters() map[string]float64
}

// BuildSnapshot reads store once, through Freeze when the store has
// one, so the snapshot reflects a single state. Attitude comes from the Euler sample
// when there is one and from the quaternion otherwise. Parameters are
// sorted by name.
func BuildSnapshot(store Store) Snapshot {
	if freezer, ok := store.(interface{ Freeze() Store }); ok {
		store = freezer.Freeze()
	}
	snapshot := Snapshot{
		Trajectory: store.Trajectory(),
		Parameters: []Parameter{},
	}
	if snapshot.Trajectory == nil {
		snapshot.Trajectory = []Point{}
	}

	if euler, ok := store.Euler(); ok {
		snapshot.Attitude = &euler
	} else if quaternion, ok := store.Quaternion(); ok {
		converted := QuaternionToEuler(quaternion)
		snapshot.Attitude = &converted
	}

	for name, value := range store.Parameters() {
		snapshot.Parameters = append(snapshot.Parameters, Parameter{Name: name, Value: value})
	}
	slices.SortFunc(snapshot.Parameters, func(a, b Parameter) int {
		return strings.Compare(a.Name, b.Name)
	})
	return snapshot
}
