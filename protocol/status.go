// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "strings"

// SystemStatus classifies a system message.
type SystemStatus string

const (
	// StatusNone is an ordinary system notice shown to the user.
	StatusNone SystemStatus = ""

	// StatusGreeting is the connection greeting. Not shown.
	StatusGreeting SystemStatus = "greeting"

	// StatusProcessingFile reports that an upload is being processed.
	// Not shown; the processing flag already conveys it.
	StatusProcessingFile SystemStatus = "processing_file"

	// StatusFileSaved reports that the service reassembled an upload.
	StatusFileSaved SystemStatus = "file_saved"

	// StatusFileProcessed reports that the log is ready for questions.
	StatusFileProcessed SystemStatus = "file_processed"
)

// ProcessingQuestionMarker is the chat content the service sends while
// it works on an answer.
const ProcessingQuestionMarker = "Processing your question..."

// Wording used by the service for each status. Greeting and
// processing text is matched case-insensitively as a prefix.
var statusPrefixes = []struct {
	prefix string
	status SystemStatus
}{
	{"connected to chat server", StatusGreeting},
	{"welcome! your client id is", StatusGreeting},
	{"processing file", StatusProcessingFile},
	{"log file processed successfully", StatusFileProcessed},
	{"file saved successfully", StatusFileSaved},
}

// ClassifySystem returns the status of a system message: the explicit
// Status field when the service set one, otherwise the status implied
// by its text.
func ClassifySystem(message Message, text string) SystemStatus {
	if message.Status != StatusNone {
		return message.Status
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, candidate := range statusPrefixes {
		if strings.HasPrefix(normalized, candidate.prefix) {
			return candidate.status
		}
	}
	return StatusNone
}
