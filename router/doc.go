// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package router turns inbound protocol messages into chat state.
//
// Reduce is a pure function from (ChatState, Message) to the next
// ChatState plus an Effect. The analysis service sends a fair amount of
// status chatter that users should not see; Reduce folds it into four
// flags instead:
//
//	chat "Processing your question..."  sets ProcessingQuestion
//	chat, anything else                 clears it, appends the answer
//	system greeting / processing file   nothing
//	system "File saved successfully"    UploadingFile off, ProcessingFile on
//	system "Log file processed ..."     clears all progress flags
//	system, anything else               appended as a notice
//	error                               clears all progress flags, appends "Error: ..."
//	acknowledgment, unknown types       nothing
//
// Local transitions (user chat, upload lifecycle, connection failure)
// are pure functions over ChatState too. Router wraps them with a
// mutex and publishes each new snapshot to subscribers.
package router
