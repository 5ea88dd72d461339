// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"time"
)

// State is the lifecycle state of the connection.
type State int

const (
	// Disconnected is the initial state and the state after an
	// explicit Disconnect.
	Disconnected State = iota
	// Connecting means a dial is in flight.
	Connecting
	// Connected means the socket is open and messages can be sent.
	Connected
	// Reconnecting means the connection was lost and a retry is
	// waiting for its backoff to elapse.
	Reconnecting
	// Failed means the retry budget is exhausted. No further
	// automatic attempt is made; only an explicit Connect leaves it.
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the observable connection status.
type Status struct {
	State State
	// Attempts counts automatic reconnect attempts since the last
	// successful open. It never exceeds Policy.MaxReconnectAttempts.
	Attempts int
}

// Policy bounds automatic reconnection.
type Policy struct {
	// MaxReconnectAttempts is the number of automatic attempts made
	// after a loss before giving up.
	MaxReconnectAttempts int
	// Backoff is the fixed delay before each automatic attempt.
	Backoff time.Duration
}

// Defaults for Policy.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultBackoff              = 5 * time.Second
)

// DefaultPolicy returns five attempts spaced five seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Backoff:              DefaultBackoff,
	}
}

// Event is an input to the connection state machine.
type Event int

const (
	// EventConnect is an explicit Connect call.
	EventConnect Event = iota
	// EventOpened is a successful dial.
	EventOpened
	// EventLost is a failed dial or a close the client did not
	// initiate.
	EventLost
	// EventDisconnect is an explicit Disconnect call.
	EventDisconnect
	// EventBackoffElapsed is the retry timer firing.
	EventBackoffElapsed
)

func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpened:
		return "opened"
	case EventLost:
		return "lost"
	case EventDisconnect:
		return "disconnect"
	case EventBackoffElapsed:
		return "backoff-elapsed"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Action is the effect the Manager performs after a transition.
type Action int

const (
	// ActionNone: nothing to do.
	ActionNone Action = iota
	// ActionDial: open a new socket.
	ActionDial
	// ActionScheduleRetry: start the backoff timer.
	ActionScheduleRetry
	// ActionClose: close the current socket and cancel any timer.
	ActionClose
	// ActionGiveUp: the connection is terminally lost.
	ActionGiveUp
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionDial:
		return "dial"
	case ActionScheduleRetry:
		return "schedule-retry"
	case ActionClose:
		return "close"
	case ActionGiveUp:
		return "give-up"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Transition is the reconnect policy as a pure function: given the
// current status and an event, it returns the next status and the
// effect to perform. Events that do not apply in the current state
// leave it unchanged with ActionNone.
func Transition(current Status, event Event, policy Policy) (Status, Action) {
	switch event {
	case EventConnect:
		switch current.State {
		case Connected, Connecting:
			return current, ActionNone
		case Failed:
			// An explicit retry after giving up gets a fresh budget.
			return Status{State: Connecting}, ActionDial
		default:
			return Status{State: Connecting, Attempts: current.Attempts}, ActionDial
		}

	case EventOpened:
		if current.State != Connecting {
			return current, ActionNone
		}
		return Status{State: Connected}, ActionNone

	case EventLost:
		if current.State != Connected && current.State != Connecting {
			return current, ActionNone
		}
		if current.Attempts < policy.MaxReconnectAttempts {
			return Status{State: Reconnecting, Attempts: current.Attempts + 1}, ActionScheduleRetry
		}
		return Status{State: Failed, Attempts: current.Attempts}, ActionGiveUp

	case EventDisconnect:
		return Status{State: Disconnected}, ActionClose

	case EventBackoffElapsed:
		if current.State != Reconnecting {
			return current, ActionNone
		}
		return Status{State: Connecting, Attempts: current.Attempts}, ActionDial
	}
	return current, ActionNone
}
