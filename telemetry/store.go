// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"maps"
	"slices"
	"sync"

	"github.com/uavlogviewer/flightlink/lib/event"
)

// MemoryStore is a Store the host application fills as it decodes a
// log. Every setter notifies OnChange subscribers after the update is
// visible.
type MemoryStore struct {
	mu         sync.Mutex
	trajectory []Point
	euler      *Euler
	quaternion *Quaternion
	parameters map[string]float64
	changes    event.Bus[struct{}]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{parameters: make(map[string]float64)}
}

// OnChange subscribes to updates.
func (s *MemoryStore) OnChange(handler func()) *event.Subscription {
	return s.changes.Subscribe(func(struct{}) { handler() })
}

// SetTrajectory replaces the trajectory.
func (s *MemoryStore) SetTrajectory(points []Point) {
	s.mu.Lock()
	s.trajectory = slices.Clone(points)
	s.mu.Unlock()
	s.changes.Publish(struct{}{})
}

// SetEuler records the latest Euler sample.
func (s *MemoryStore) SetEuler(euler Euler) {
	s.mu.Lock()
	s.euler = &euler
	s.mu.Unlock()
	s.changes.Publish(struct{}{})
}

// SetQuaternion records the latest quaternion sample.
func (s *MemoryStore) SetQuaternion(quaternion Quaternion) {
	s.mu.Lock()
	s.quaternion = &quaternion
	s.mu.Unlock()
	s.changes.Publish(struct{}{})
}

// SetParameters merges values into the parameter set.
func (s *MemoryStore) SetParameters(values map[string]float64) {
	s.mu.Lock()
	maps.Copy(s.parameters, values)
	s.mu.Unlock()
	s.changes.Publish(struct{}{})
}

// Freeze returns a copy of the current contents that later updates do
// not affect. BuildSnapshot reads through it so a snapshot never mixes
// two updates.
func (s *MemoryStore) Freeze() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	frozen := &MemoryStore{
		trajectory: slices.Clone(s.trajectory),
		parameters: maps.Clone(s.parameters),
	}
	if s.euler != nil {
		euler := *s.euler
		frozen.euler = &euler
	}
	if s.quaternion != nil {
		quaternion := *s.quaternion
		frozen.quaternion = &quaternion
	}
	return frozen
}

// Trajectory implements Store.
func (s *MemoryStore) Trajectory() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trajectory)
}

// Euler implements Store.
func (s *MemoryStore) Euler() (Euler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.euler == nil {
		return Euler{}, false
	}
	return *s.euler, true
}

// Quaternion implements Store.
func (s *MemoryStore) Quaternion() (Quaternion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quaternion == nil {
		return Quaternion{}, false
	}
	return *s.quaternion, true
}

// Parameters implements Store.
func (s *MemoryStore) Parameters() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.parameters)
}
