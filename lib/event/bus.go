// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides typed publish/subscribe with explicit
// subscription handles.
//
// Components never attach to a global bus. A subscriber calls
// Subscribe and receives a *Subscription that it must Close when the
// context it dispatches into goes away. Closing is idempotent, and no
// delivery starts after Close returns, so a torn-down session is never
// called back.
package event

import (
	"slices"
	"sync"
)

// Bus delivers values of type T to every current subscriber, in
// subscription order, on the publishing goroutine.
//
// The zero value is ready to use.
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []handlerEntry[T]
}

type handlerEntry[T any] struct {
	id      uint64
	handler func(T)
	// closed is shared with the Subscription so a delivery already
	// copied out of the list can still observe a concurrent Close.
	closed *closedFlag
}

type closedFlag struct {
	mu     sync.RWMutex
	closed bool
}

// Subscribe registers handler and returns its handle.
func (b *Bus[T]) Subscribe(handler func(T)) *Subscription {
	flag := &closedFlag{}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, handlerEntry[T]{id: id, handler: handler, closed: flag})
	b.mu.Unlock()

	return &Subscription{release: func() {
		flag.mu.Lock()
		flag.closed = true
		flag.mu.Unlock()

		b.mu.Lock()
		b.handlers = slices.DeleteFunc(b.handlers, func(entry handlerEntry[T]) bool {
			return entry.id == id
		})
		b.mu.Unlock()
	}}
}

// Publish calls every subscriber with value and returns once they have
// all returned.
func (b *Bus[T]) Publish(value T) {
	b.mu.Lock()
	snapshot := slices.Clone(b.handlers)
	b.mu.Unlock()

	for _, entry := range snapshot {
		entry.closed.mu.RLock()
		if !entry.closed.closed {
			entry.handler(value)
		}
		entry.closed.mu.RUnlock()
	}
}

// Len returns the number of live subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Subscription is the handle returned by Bus.Subscribe.
type Subscription struct {
	once    sync.Once
	release func()
}

// Close detaches the handler. If a delivery to this handler is in
// progress, Close waits for it to return, so Close must not be called
// from inside the subscription's own handler.
func (s *Subscription) Close() error {
	s.once.Do(s.release)
	return nil
}

// Group collects subscriptions so they can be released together.
type Group struct {
	mu            sync.Mutex
	subscriptions []*Subscription
}

// Add records subscription in the group and returns it.
func (g *Group) Add(subscription *Subscription) *Subscription {
	g.mu.Lock()
	g.subscriptions = append(g.subscriptions, subscription)
	g.mu.Unlock()
	return subscription
}

// Close releases every subscription in reverse order of addition.
func (g *Group) Close() error {
	g.mu.Lock()
	subscriptions := g.subscriptions
	g.subscriptions = nil
	g.mu.Unlock()

	for index := len(subscriptions) - 1; index >= 0; index-- {
		subscriptions[index].Close()
	}
	return nil
}
