// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
)

// feedMsg carries whatever arrived since the view last took from the
// feed. Nil fields mean nothing new of that kind.
type feedMsg struct {
	state  *router.ChatState
	follow bool
	status *session.Status
}

// feed moves router updates and status changes from client goroutines
// to the bubbletea loop. Pushing never blocks: pending values coalesce
// so the latest state wins, and a follow request is kept until taken.
type feed struct {
	mu        sync.Mutex
	state     *router.ChatState
	follow    bool
	status    *session.Status
	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	subscriptions event.Group
}

func newFeed(backend Backend) *feed {
	f := &feed{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	f.subscriptions.Add(backend.Router().Subscribe(f.pushUpdate))
	f.subscriptions.Add(backend.OnStatus(f.pushStatus))
	return f
}

func (f *feed) pushUpdate(update router.Update) {
	f.mu.Lock()
	state := update.State
	f.state = &state
	f.follow = f.follow || update.Effect.FollowLatest
	f.mu.Unlock()
	f.notify()
}

func (f *feed) pushStatus(status session.Status) {
	f.mu.Lock()
	f.status = &status
	f.mu.Unlock()
	f.notify()
}

func (f *feed) notify() {
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// take blocks until something is pending and returns it, or returns
// false once the feed is closed.
func (f *feed) take() (feedMsg, bool) {
	for {
		select {
		case <-f.signal:
		case <-f.done:
			return feedMsg{}, false
		}
		f.mu.Lock()
		msg := feedMsg{state: f.state, follow: f.follow, status: f.status}
		f.state, f.follow, f.status = nil, false, nil
		f.mu.Unlock()
		if msg.state != nil || msg.status != nil {
			return msg, true
		}
	}
}

// listen is the tea.Cmd that delivers the next feedMsg. The view
// reissues it after every delivery.
func (f *feed) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := f.take()
		if !ok {
			return nil
		}
		return msg
	}
}

func (f *feed) close() {
	f.closeOnce.Do(func() {
		f.subscriptions.Close()
		close(f.done)
	})
}
