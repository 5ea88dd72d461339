// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/uavlogviewer/flightlink/protocol"
)

// ErrorPrefix starts every history entry built from a server error.
const ErrorPrefix = "Error: "

// Effect describes what the presentation layer should do after a
// transition besides re-rendering.
type Effect struct {
	// FollowLatest is set when History grew, so the view scrolls to
	// the newest entry.
	FollowLatest bool
}

// Reduce applies one inbound message to state. It is pure: the result
// depends only on its arguments. now stamps new entries when the
// message carries no readable timestamp.
//
// Content that cannot be read for the message's type is returned as a
// *protocol.ProtocolError with state unchanged. Types the client does
// not consume, acknowledgment included, leave state unchanged.
func Reduce(state ChatState, message protocol.Message, now time.Time) (ChatState, Effect, error) {
	at := message.SentAt()
	if at.IsZero() {
		at = now
	}

	switch message.Type {
	case protocol.TypeChat:
		text, err := message.Text()
		if err != nil {
			return state, Effect{}, err
		}
		if text == protocol.ProcessingQuestionMarker {
			state.ProcessingQuestion = true
			return state, Effect{}, nil
		}
		state.ProcessingQuestion = false
		return state.appendEntry(OriginServer, text, at), Effect{FollowLatest: true}, nil

	case protocol.TypeSystem:
		text, err := message.Text()
		if err != nil {
			return state, Effect{}, err
		}
		switch protocol.ClassifySystem(message, text) {
		case protocol.StatusGreeting, protocol.StatusProcessingFile:
			return state, Effect{}, nil
		case protocol.StatusFileProcessed:
			return state.clearProgress(), Effect{}, nil
		case protocol.StatusFileSaved:
			state.UploadingFile = false
			state.ProcessingFile = true
			return state, Effect{}, nil
		default:
			return state.appendEntry(OriginSystem, text, at), Effect{FollowLatest: true}, nil
		}

	case protocol.TypeError:
		text, err := message.Text()
		if err != nil {
			// A server error is shown even when its content is not
			// plain text.
			text = string(message.Content)
		}
		state = state.clearProgress()
		return state.appendEntry(OriginSystem, ErrorPrefix+text, at), Effect{FollowLatest: true}, nil

	default:
		return state, Effect{}, nil
	}
}

// UserMessage records chat the user sent.
func UserMessage(state ChatState, text string, now time.Time) (ChatState, Effect) {
	return state.appendEntry(OriginUser, text, now), Effect{FollowLatest: true}
}

// SendFailed records that chat the user typed did not reach the
// service.
func SendFailed(state ChatState, cause error, now time.Time) (ChatState, Effect) {
	state.ProcessingQuestion = false
	text := fmt.Sprintf("%sMessage not sent: %v", ErrorPrefix, cause)
	return state.appendEntry(OriginSystem, text, now), Effect{FollowLatest: true}
}

// UploadStarted marks an upload as sending: the uploading flag is set
// and chat input is disabled until the chunks are out.
func UploadStarted(state ChatState) ChatState {
	state.UploadingFile = true
	state.sending = true
	return state.refreshChatEnabled()
}

// UploadCompleted re-enables chat once every chunk and file_complete
// were sent. The uploading flag stays set until the service reports
// the file saved.
func UploadCompleted(state ChatState) ChatState {
	state.sending = false
	return state.refreshChatEnabled()
}

// UploadFailed ends an aborted upload and tells the user.
func UploadFailed(state ChatState, fileName string, cause error, now time.Time) (ChatState, Effect) {
	state.sending = false
	state.UploadingFile = false
	state = state.refreshChatEnabled()
	text := fmt.Sprintf("%s%s failed: %v", uploadFailurePrefix, fileName, cause)
	return state.appendEntry(OriginSystem, text, now), Effect{FollowLatest: true}
}

// UploadRejected tells the user an upload was refused before it
// started. The flags belong to whatever upload is still running and
// are left as they are.
func UploadRejected(state ChatState, fileName string, cause error, now time.Time) (ChatState, Effect) {
	text := fmt.Sprintf("%s%s failed: %v", uploadFailurePrefix, fileName, cause)
	return state.appendEntry(OriginSystem, text, now), Effect{FollowLatest: true}
}

const uploadFailurePrefix = ErrorPrefix + "Upload of "

// IsUploadFailure reports whether entry was recorded by UploadFailed
// or UploadRejected.
func IsUploadFailure(entry Entry) bool {
	return entry.Origin == OriginSystem && strings.HasPrefix(entry.Text, uploadFailurePrefix)
}

// ConnectionFailed records that reconnection gave up. Nothing in
// flight can finish, so the progress flags are cleared and chat is
// disabled until a connection is established again.
func ConnectionFailed(state ChatState, attempts int, now time.Time) (ChatState, Effect) {
	if state.ConnectionFailed {
		return state, Effect{}
	}
	state = state.clearProgress()
	state.ConnectionFailed = true
	state.sending = false
	state = state.refreshChatEnabled()
	text := fmt.Sprintf("Connection to the analysis service lost after %d reconnect attempts. Reconnect to continue.", attempts)
	return state.appendEntry(OriginSystem, text, now), Effect{FollowLatest: true}
}

// ConnectionRestored clears a previous connection failure.
func ConnectionRestored(state ChatState) ChatState {
	state.ConnectionFailed = false
	return state.refreshChatEnabled()
}
