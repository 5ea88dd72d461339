// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"fmt"
	"slices"
	"time"
)

// Origin identifies who produced a history entry.
type Origin int

const (
	// OriginUser is chat typed by the user.
	OriginUser Origin = iota
	// OriginServer is a chat answer from the analysis service.
	OriginServer
	// OriginSystem is a status or error notice.
	OriginSystem
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginServer:
		return "server"
	case OriginSystem:
		return "system"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// Entry is one line of chat history.
type Entry struct {
	Origin Origin
	Text   string
	At     time.Time
}

// ChatState is everything the presentation layer renders. Values are
// snapshots: the reducer returns a new ChatState and never modifies
// entries already in History.
type ChatState struct {
	// History only grows.
	History []Entry

	// ProcessingQuestion is set while the service works on an answer.
	ProcessingQuestion bool
	// UploadingFile is set from the start of an upload until the
	// service reports the file saved or the upload fails.
	UploadingFile bool
	// ProcessingFile is set from "file saved" until the service
	// reports the log processed.
	ProcessingFile bool

	// ChatEnabled is false while an upload is sending or after the
	// connection has failed for good.
	ChatEnabled bool
	// ConnectionFailed is set once reconnection has given up and
	// cleared when a connection is established again.
	ConnectionFailed bool

	// sending tracks the upload transmission itself, which ends before
	// the service confirms the file.
	sending bool
}

// NewChatState returns the state of a fresh session.
func NewChatState() ChatState {
	return ChatState{ChatEnabled: true}
}

// Busy reports whether any of the three progress flags is set.
func (s ChatState) Busy() bool {
	return s.ProcessingQuestion || s.UploadingFile || s.ProcessingFile
}

// Sending reports whether an upload is transmitting chunks.
func (s ChatState) Sending() bool {
	return s.sending
}

// Last returns the most recent history entry.
func (s ChatState) Last() (Entry, bool) {
	if len(s.History) == 0 {
		return Entry{}, false
	}
	return s.History[len(s.History)-1], true
}

func (s ChatState) appendEntry(origin Origin, text string, at time.Time) ChatState {
	// Clip so that appending never writes into an array shared with
	// an earlier snapshot.
	s.History = append(slices.Clip(s.History), Entry{Origin: origin, Text: text, At: at})
	return s
}

func (s ChatState) clearProgress() ChatState {
	s.ProcessingQuestion = false
	s.UploadingFile = false
	s.ProcessingFile = false
	return s
}

func (s ChatState) refreshChatEnabled() ChatState {
	s.ChatEnabled = !s.ConnectionFailed && !s.sending
	return s
}
