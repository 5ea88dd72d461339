// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNewChatEnvelope(t *testing.T) {
	frame, err := NewChat("what was the max altitude?", epoch).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(frame, &raw); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	if raw["type"] != "chat" {
		t.Errorf("type = %v, want chat", raw["type"])
	}
	if raw["content"] != "what was the max altitude?" {
		t.Errorf("content = %v", raw["content"])
	}
	if raw["timestamp"] != "2026-01-01T12:00:00Z" {
		t.Errorf("timestamp = %v", raw["timestamp"])
	}
	if _, present := raw["status"]; present {
		t.Errorf("outbound chat should not carry a status field")
	}
}

func TestFileChunkFieldNames(t *testing.T) {
	message, err := New(TypeFileChunk, FileChunk{
		ChunkIndex:  2,
		TotalChunks: 3,
		FileName:    "flight.bin",
		Data:        "AAEC",
	}, epoch)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var content map[string]any
	if err := json.Unmarshal(message.Content, &content); err != nil {
		t.Fatalf("content is not an object: %v", err)
	}
	for _, field := range []string{"chunkIndex", "totalChunks", "fileName", "data"} {
		if _, ok := content[field]; !ok {
			t.Errorf("file_chunk content missing %q: %s", field, message.Content)
		}
	}
}

func TestFileCompleteOmitsEmptyDigest(t *testing.T) {
	message, err := New(TypeFileComplete, FileComplete{FileName: "a.bin", TotalChunks: 1}, epoch)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if string(message.Content) != `{"fileName":"a.bin","totalChunks":1}` {
		t.Fatalf("content = %s", message.Content)
	}
}

func TestDecode(t *testing.T) {
	message, err := Decode([]byte(`{"type":"system","content":"hello","timestamp":"2026-01-01T12:00:00.5"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if message.Type != TypeSystem {
		t.Fatalf("Type = %q", message.Type)
	}
	text, err := message.Text()
	if err != nil || text != "hello" {
		t.Fatalf("Text() = %q, %v", text, err)
	}
	if want := time.Date(2026, 1, 1, 12, 0, 0, 500_000_000, time.UTC); !message.SentAt().Equal(want) {
		t.Fatalf("SentAt() = %v, want %v", message.SentAt(), want)
	}
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	message, err := Decode([]byte(`{"type":"telemetry_request","content":{}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if message.Type != "telemetry_request" {
		t.Fatalf("Type = %q", message.Type)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{`not json`, `[]`, `{"content":"x"}`, `{"type":5}`} {
		_, err := Decode([]byte(frame))
		var protocolErr *ProtocolError
		if !errors.As(err, &protocolErr) {
			t.Errorf("Decode(%s) error = %v, want *ProtocolError", frame, err)
		}
	}
}

func TestTextRejectsNonString(t *testing.T) {
	message, err := Decode([]byte(`{"type":"chat","content":{"nested":true}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	_, err = message.Text()
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("Text() error = %v, want *ProtocolError", err)
	}
}

func TestEncodeRequiresType(t *testing.T) {
	if _, err := (Message{}).Encode(); err == nil {
		t.Fatal("Encode of an untyped message succeeded")
	}
}
