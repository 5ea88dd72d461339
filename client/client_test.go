// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/uavlogviewer/flightlink/protocol"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
	"github.com/uavlogviewer/flightlink/telemetry"
	"github.com/uavlogviewer/flightlink/upload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// analysisServer mimics the analysis service's websocket contract: it
// greets, acknowledges chunks, reassembles uploads, answers chat with
// the processing marker followed by an answer, and records data
// messages.
type analysisServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	chunks    map[int][]byte
	completes []protocol.FileComplete
	data      []json.RawMessage
	// answer overrides the reply to chat when set.
	answer func(text string) []protocol.Message
}

func newAnalysisServer(t *testing.T) *analysisServer {
	t.Helper()
	analysis := &analysisServer{chunks: make(map[int][]byte)}
	analysis.server = httptest.NewServer(http.HandlerFunc(analysis.serve))
	t.Cleanup(analysis.server.Close)
	return analysis
}

func (s *analysisServer) endpoint() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

func reply(messageType protocol.Type, text string) protocol.Message {
	message, _ := protocol.New(messageType, text, time.Now())
	return message
}

func (s *analysisServer) serve(writer http.ResponseWriter, request *http.Request) {
	connection, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return
	}
	defer connection.Close()

	send := func(message protocol.Message) bool {
		frame, _ := message.Encode()
		return connection.WriteMessage(websocket.TextMessage, frame) == nil
	}
	clientID := strings.TrimPrefix(request.URL.Path, "/ws/")
	if !send(reply(protocol.TypeSystem, "Connected to chat server")) ||
		!send(reply(protocol.TypeSystem, "Welcome! Your client ID is: "+clientID)) {
		return
	}

	for {
		_, frame, err := connection.ReadMessage()
		if err != nil {
			return
		}
		message, err := protocol.Decode(frame)
		if err != nil {
			return
		}
		for _, response := range s.handle(message) {
			if !send(response) {
				return
			}
		}
	}
}

func (s *analysisServer) handle(message protocol.Message) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch message.Type {
	case protocol.TypeFileChunk:
		var chunk protocol.FileChunk
		json.Unmarshal(message.Content, &chunk)
		data, _ := base64.StdEncoding.DecodeString(chunk.Data)
		s.chunks[chunk.ChunkIndex] = data
		return []protocol.Message{reply(protocol.TypeAcknowledgment, "Received chunk")}

	case protocol.TypeFileComplete:
		var complete protocol.FileComplete
		json.Unmarshal(message.Content, &complete)
		s.completes = append(s.completes, complete)
		return []protocol.Message{
			reply(protocol.TypeSystem, "Processing File..."),
			reply(protocol.TypeSystem, "File saved successfully: "+complete.FileName),
			reply(protocol.TypeSystem, "Log file processed successfully: "+complete.FileName+".json"),
		}

	case protocol.TypeChat:
		text, _ := message.Text()
		if s.answer != nil {
			return s.answer(text)
		}
		return []protocol.Message{
			reply(protocol.TypeChat, protocol.ProcessingQuestionMarker),
			reply(protocol.TypeChat, "You asked: "+text),
		}

	case protocol.TypeData:
		s.data = append(s.data, message.Content)
		return nil
	}
	return nil
}

func (s *analysisServer) reassembled(total int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var file []byte
	for index := range total {
		file = append(file, s.chunks[index]...)
	}
	return file
}

func (s *analysisServer) latestData() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		return nil
	}
	return s.data[len(s.data)-1]
}

func (s *analysisServer) dataCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func newTestClient(t *testing.T, endpoint string, store telemetry.Store) *Client {
	t.Helper()
	client, err := New(Config{
		Session: session.Config{
			Endpoint: endpoint,
			Policy:   session.Policy{Backoff: 20 * time.Millisecond},
		},
		Telemetry:      store,
		UploadThrottle: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// waitForState blocks until the router state satisfies condition.
func waitForState(t *testing.T, client *Client, description string, condition func(router.ChatState) bool) router.ChatState {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if state := client.Router().State(); condition(state) {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state = %+v", description, client.Router().State())
	return router.ChatState{}
}

func TestUploadFlow(t *testing.T) {
	analysis := newAnalysisServer(t)
	client := newTestClient(t, analysis.endpoint(), nil)

	data := make([]byte, 5*upload.ChunkSize/2)
	for index := range data {
		data[index] = byte(index % 251)
	}

	var mu sync.Mutex
	sawUploading := false
	sawProcessing := false
	subscription := client.Router().Subscribe(func(update router.Update) {
		mu.Lock()
		defer mu.Unlock()
		if update.State.UploadingFile && !update.State.ChatEnabled {
			sawUploading = true
		}
		if update.State.ProcessingFile {
			sawProcessing = true
		}
	})
	defer subscription.Close()

	client.NotifyFileReady(upload.BytesSource("00000042.BIN", data))

	waitForState(t, client, "processing finished", func(state router.ChatState) bool {
		return client.UploadProgress().Status == upload.Completed && !state.Busy()
	})

	mu.Lock()
	if !sawUploading || !sawProcessing {
		t.Fatalf("flag transitions: uploading %v, processing %v", sawUploading, sawProcessing)
	}
	mu.Unlock()

	state := client.Router().State()
	if len(state.History) != 0 {
		t.Fatalf("status chatter reached history: %+v", state.History)
	}
	if !state.ChatEnabled {
		t.Fatal("chat still disabled after upload")
	}
	if !bytes.Equal(analysis.reassembled(3), data) {
		t.Fatal("server reassembled different bytes")
	}
	analysis.mu.Lock()
	completes := analysis.completes
	analysis.mu.Unlock()
	if len(completes) != 1 || completes[0].TotalChunks != 3 || !strings.HasPrefix(completes[0].Digest, upload.DigestPrefix) {
		t.Fatalf("file_complete messages = %+v", completes)
	}
}

func TestFileReadyDuringConnect(t *testing.T) {
	for range 5 {
		analysis := newAnalysisServer(t)
		client := newTestClient(t, analysis.endpoint(), nil)

		client.NotifyFileReady(upload.BytesSource("log.bin", []byte("flight log")))
		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect: %v", err)
		}

		state := waitForState(t, client, "upload finished", func(state router.ChatState) bool {
			status := client.UploadProgress().Status
			return status == upload.Completed || status == upload.Failed ||
				slices.ContainsFunc(state.History, router.IsUploadFailure)
		})
		if status := client.UploadProgress().Status; status != upload.Completed {
			t.Fatalf("upload status = %s, history = %+v", status, state.History)
		}
		if !bytes.Equal(analysis.reassembled(1), []byte("flight log")) {
			t.Fatal("server reassembled different bytes")
		}
	}
}

// gatedReader blocks reads until open is closed, signalling entered
// on the first read.
type gatedReader struct {
	data    []byte
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func (r *gatedReader) ReadAt(buffer []byte, offset int64) (int, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.open
	return bytes.NewReader(r.data).ReadAt(buffer, offset)
}

func TestUploadWhileSendingIsReported(t *testing.T) {
	analysis := newAnalysisServer(t)
	client := newTestClient(t, analysis.endpoint(), nil)

	first := &gatedReader{
		data:    []byte("first log"),
		entered: make(chan struct{}),
		open:    make(chan struct{}),
	}
	var release sync.Once
	releaseFirst := func() { release.Do(func() { close(first.open) }) }
	t.Cleanup(releaseFirst)

	client.NotifyFileReady(upload.Source{Name: "first.bin", Size: int64(len(first.data)), Data: first})
	select {
	case <-first.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("first upload never started")
	}

	err := client.Upload(context.Background(), upload.BytesSource("second.bin", []byte("second log")))
	if !errors.Is(err, upload.ErrUploadInProgress) {
		t.Fatalf("second Upload error = %v, want ErrUploadInProgress", err)
	}
	state := client.Router().State()
	last, _ := state.Last()
	if !router.IsUploadFailure(last) || !strings.Contains(last.Text, "second.bin") {
		t.Fatalf("History = %+v", state.History)
	}
	if !state.UploadingFile {
		t.Fatal("rejecting the second upload cleared the first upload's flag")
	}

	releaseFirst()
	waitForState(t, client, "first upload finished", func(router.ChatState) bool {
		return client.UploadProgress().Status == upload.Completed
	})
}

func TestChatFlow(t *testing.T) {
	analysis := newAnalysisServer(t)
	client := newTestClient(t, analysis.endpoint(), nil)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.SendChat(ctx, "what was the max altitude?"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}

	state := waitForState(t, client, "answer", func(state router.ChatState) bool {
		return len(state.History) == 2
	})
	if state.ProcessingQuestion {
		t.Fatal("answer did not clear the processing flag")
	}
	if state.History[0].Origin != router.OriginUser || state.History[1].Text != "You asked: what was the max altitude?" {
		t.Fatalf("History = %+v", state.History)
	}
}

func TestServerErrorIsShown(t *testing.T) {
	analysis := newAnalysisServer(t)
	analysis.answer = func(string) []protocol.Message {
		return []protocol.Message{
			reply(protocol.TypeChat, protocol.ProcessingQuestionMarker),
			reply(protocol.TypeError, "Error processing your message: model unavailable"),
		}
	}
	client := newTestClient(t, analysis.endpoint(), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.SendChat(context.Background(), "hello"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	state := waitForState(t, client, "error entry", func(state router.ChatState) bool {
		return len(state.History) == 2
	})
	if state.Busy() {
		t.Fatal("error did not clear flags")
	}
	if last, _ := state.Last(); last.Text != "Error: Error processing your message: model unavailable" {
		t.Fatalf("last entry = %q", last.Text)
	}
}

func TestSendChatWhileDisconnected(t *testing.T) {
	analysis := newAnalysisServer(t)
	client := newTestClient(t, analysis.endpoint(), nil)

	err := client.SendChat(context.Background(), "hello?")
	if !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("SendChat error = %v, want ErrNotConnected", err)
	}
	state := client.Router().State()
	if len(state.History) != 2 || !strings.HasPrefix(state.History[1].Text, router.ErrorPrefix) {
		t.Fatalf("History = %+v", state.History)
	}
}

func TestTelemetrySync(t *testing.T) {
	analysis := newAnalysisServer(t)
	store := telemetry.NewMemoryStore()
	store.SetTrajectory([]telemetry.Point{{Latitude: -35.36, Longitude: 149.16, Altitude: 584}})
	store.SetParameters(map[string]float64{"ARMING_CHECK": 1})
	client := newTestClient(t, analysis.endpoint(), store)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, client, "snapshot on connect", func(router.ChatState) bool {
		return analysis.dataCount() >= 1
	})

	store.SetEuler(telemetry.Euler{Roll: 0.1})
	waitForState(t, client, "snapshot on change", func(router.ChatState) bool {
		return strings.Contains(string(analysis.latestData()), `"roll":0.1`)
	})

	latest := string(analysis.latestData())
	if !strings.Contains(latest, `["ARMING_CHECK",1]`) || !strings.Contains(latest, `[-35.36,149.16,584]`) {
		t.Fatalf("latest snapshot = %s", latest)
	}
}

func TestTelemetryBurstEndsWithLatestSnapshot(t *testing.T) {
	analysis := newAnalysisServer(t)
	store := telemetry.NewMemoryStore()
	client := newTestClient(t, analysis.endpoint(), store)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitForState(t, client, "snapshot on connect", func(router.ChatState) bool {
		return analysis.dataCount() >= 1
	})

	for step := 1; step <= 40; step++ {
		store.Apply(&telemetry.Document{
			Attitude:   &telemetry.Euler{Roll: float64(step)},
			Parameters: map[string]float64{fmt.Sprintf("STEP_%d", step): 1},
		})
	}

	final := `"roll":40,`
	waitForState(t, client, "final snapshot", func(router.ChatState) bool {
		return strings.Contains(string(analysis.latestData()), final)
	})
	// Give any sync still running a chance to overtake the final one.
	time.Sleep(100 * time.Millisecond)

	latest := string(analysis.latestData())
	if !strings.Contains(latest, final) || !strings.Contains(latest, `[["STEP_40",1]]`) {
		t.Fatalf("latest snapshot = %s", latest)
	}
	if count := analysis.dataCount(); count > 41 {
		t.Fatalf("sent %d snapshots for 40 changes", count)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	analysis := newAnalysisServer(t)
	client := newTestClient(t, analysis.endpoint(), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if client.Status().State != session.Disconnected {
		t.Fatalf("state after Close = %s", client.Status().State)
	}
}
