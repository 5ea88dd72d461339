// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"log/slog"
	"sync"

	"github.com/uavlogviewer/flightlink/lib/clock"
	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/protocol"
	"github.com/uavlogviewer/flightlink/session"
)

// Update is published after every transition that changed state.
type Update struct {
	State  ChatState
	Effect Effect
}

// Config configures a Router.
type Config struct {
	// Clock stamps local entries. Nil means clock.Real().
	Clock  clock.Clock
	Logger *slog.Logger
}

// Router owns a ChatState and applies transitions to it one at a time.
// Subscribers receive updates in the order transitions were applied.
//
// Router implements upload.Observer, and HandleFrame and
// ConnectionStatus have the signatures session.Manager subscriptions
// expect.
type Router struct {
	clock  clock.Clock
	logger *slog.Logger

	// applyMu serializes transitions together with their delivery.
	applyMu sync.Mutex
	mu      sync.Mutex
	state   ChatState
	updates event.Bus[Update]
}

// New returns a Router holding NewChatState().
func New(config Config) *Router {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{clock: clk, logger: logger, state: NewChatState()}
}

// State returns the current snapshot.
func (r *Router) State() ChatState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers handler for updates. Handlers run on the
// goroutine that caused the transition and must not call back into
// the Router's mutating methods.
func (r *Router) Subscribe(handler func(Update)) *event.Subscription {
	return r.updates.Subscribe(handler)
}

// HandleFrame decodes one inbound frame and dispatches it. Malformed
// frames are logged and dropped.
func (r *Router) HandleFrame(frame []byte) {
	message, err := protocol.Decode(frame)
	if err != nil {
		r.logger.Warn("dropping inbound frame", "error", err, "bytes", len(frame))
		return
	}
	r.Dispatch(message)
}

// Dispatch applies one inbound message.
func (r *Router) Dispatch(message protocol.Message) {
	if message.Type == protocol.TypeAcknowledgment {
		r.logger.Debug("acknowledgment", "content", string(message.Content))
		return
	}
	r.apply(func(state ChatState) (ChatState, Effect) {
		next, effect, err := Reduce(state, message, r.clock.Now())
		if err != nil {
			r.logger.Warn("dropping inbound message", "type", message.Type, "error", err)
		}
		return next, effect
	})
}

// UserMessage records chat the user sent.
func (r *Router) UserMessage(text string) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return UserMessage(state, text, r.clock.Now())
	})
}

// SendFailed records that user chat could not be sent.
func (r *Router) SendFailed(err error) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return SendFailed(state, err, r.clock.Now())
	})
}

// UploadStarted implements upload.Observer.
func (r *Router) UploadStarted(fileName string, totalChunks int) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return UploadStarted(state), Effect{}
	})
}

// ChunkSent implements upload.Observer. Chunk progress is not part of
// ChatState.
func (r *Router) ChunkSent(fileName string, index, totalChunks int) {}

// UploadCompleted implements upload.Observer.
func (r *Router) UploadCompleted(fileName string, totalChunks int) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return UploadCompleted(state), Effect{}
	})
}

// UploadFailed implements upload.Observer.
func (r *Router) UploadFailed(fileName string, err error) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return UploadFailed(state, fileName, err, r.clock.Now())
	})
}

// UploadRejected records an upload refused before it started.
func (r *Router) UploadRejected(fileName string, err error) {
	r.apply(func(state ChatState) (ChatState, Effect) {
		return UploadRejected(state, fileName, err, r.clock.Now())
	})
}

// ConnectionStatus applies a connection status change: giving up
// becomes one terminal history entry, and a later successful
// connection clears it.
func (r *Router) ConnectionStatus(status session.Status) {
	switch status.State {
	case session.Failed:
		r.apply(func(state ChatState) (ChatState, Effect) {
			return ConnectionFailed(state, status.Attempts, r.clock.Now())
		})
	case session.Connected:
		r.apply(func(state ChatState) (ChatState, Effect) {
			return ConnectionRestored(state), Effect{}
		})
	}
}

// apply runs transition on the current state and publishes the result
// if anything changed.
func (r *Router) apply(transition func(ChatState) (ChatState, Effect)) {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	r.mu.Lock()
	previous := r.state
	next, effect := transition(previous)
	r.state = next
	r.mu.Unlock()

	if effect == (Effect{}) && sameState(previous, next) {
		return
	}
	r.updates.Publish(Update{State: next, Effect: effect})
}

func sameState(a, b ChatState) bool {
	return len(a.History) == len(b.History) &&
		a.ProcessingQuestion == b.ProcessingQuestion &&
		a.UploadingFile == b.UploadingFile &&
		a.ProcessingFile == b.ProcessingFile &&
		a.ChatEnabled == b.ChatEnabled &&
		a.ConnectionFailed == b.ConnectionFailed &&
		a.sending == b.sending
}
