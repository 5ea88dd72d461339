// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type tags a Message envelope and determines the shape of Content.
type Type string

const (
	// TypeChat carries plain text in both directions.
	TypeChat Type = "chat"

	// TypeSystem carries server status text. Some of it is status
	// noise that the router suppresses; see ClassifySystem.
	TypeSystem Type = "system"

	// TypeError carries a server-reported error for the user.
	TypeError Type = "error"

	// TypeAcknowledgment is sent by the server for every received
	// chunk or unrecognized message. Its content is opaque.
	TypeAcknowledgment Type = "acknowledgment"

	// TypeData carries a telemetry snapshot to the server.
	TypeData Type = "data"

	// TypeFileChunk carries one encoded slice of an upload.
	TypeFileChunk Type = "file_chunk"

	// TypeFileComplete follows the last chunk of an upload.
	TypeFileComplete Type = "file_complete"
)

// TimestampLayout is the layout of Message.Timestamp.
const TimestampLayout = time.RFC3339Nano

// Message is the JSON envelope exchanged over the connection.
//
// Content is kept raw: its shape depends on Type and the receiver
// decodes it with the accessor that matches (Text, FileChunk, ...).
// A Message is never modified after it is built or received.
type Message struct {
	Type      Type            `json:"type"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`

	// Status is an optional structured status code for system
	// messages. When the server sets it, it takes precedence over
	// matching the content text.
	Status SystemStatus `json:"status,omitempty"`
}

// FileChunk is the content of a TypeFileChunk message.
type FileChunk struct {
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	FileName    string `json:"fileName"`
	// Data is the standard base64 encoding of the chunk bytes.
	Data string `json:"data"`
}

// FileComplete is the content of a TypeFileComplete message.
type FileComplete struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	// Digest is "blake3:<hex>" of the whole file. Receivers that do
	// not verify uploads ignore it.
	Digest string `json:"digest,omitempty"`
}

// New builds an outbound message, JSON-encoding content and stamping
// it with now.
func New(messageType Type, content any, now time.Time) (Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: encoding %s content: %w", messageType, err)
	}
	return Message{
		Type:      messageType,
		Content:   raw,
		Timestamp: now.UTC().Format(TimestampLayout),
	}, nil
}

// NewChat builds a chat message carrying text.
func NewChat(text string, now time.Time) Message {
	// Marshaling a string cannot fail.
	message, _ := New(TypeChat, text, now)
	return message
}

// Encode returns the wire form of m.
func (m Message) Encode() ([]byte, error) {
	if m.Type == "" {
		return nil, fmt.Errorf("protocol: message has no type")
	}
	if m.Content == nil {
		m.Content = json.RawMessage("null")
	}
	return json.Marshal(m)
}

// Decode parses one inbound frame. Frames that are not a JSON object
// with a string "type" are reported as *ProtocolError.
func Decode(frame []byte) (Message, error) {
	var message Message
	if err := json.Unmarshal(frame, &message); err != nil {
		return Message{}, &ProtocolError{Reason: "invalid envelope", Frame: frame, Err: err}
	}
	if message.Type == "" {
		return Message{}, &ProtocolError{Reason: "missing type", Frame: frame}
	}
	return message, nil
}

// Text decodes Content as a plain string. Content that is not a JSON
// string is reported as *ProtocolError.
func (m Message) Text() (string, error) {
	var text string
	if err := json.Unmarshal(m.Content, &text); err != nil {
		return "", &ProtocolError{
			Reason: fmt.Sprintf("%s content is not text", m.Type),
			Frame:  m.Content,
			Err:    err,
		}
	}
	return text, nil
}

// localTimestampLayout accepts ISO-8601 timestamps without a zone
// offset, which the service emits in its local time.
const localTimestampLayout = "2006-01-02T15:04:05.999999999"

// SentAt parses Timestamp. The zero time is returned when the sender
// omitted it or used an unrecognized layout.
func (m Message) SentAt() time.Time {
	for _, layout := range []string{TimestampLayout, localTimestampLayout} {
		if parsed, err := time.Parse(layout, m.Timestamp); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
