// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uavlogviewer/flightlink/lib/clock"
	"github.com/uavlogviewer/flightlink/protocol"
	"github.com/uavlogviewer/flightlink/session"
)

// DefaultThrottle is the pause after each chunk.
const DefaultThrottle = 100 * time.Millisecond

// Status is the state of the most recent upload.
type Status int

const (
	Idle Status = iota
	Sending
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Progress describes the most recent upload.
type Progress struct {
	FileName    string
	TotalChunks int
	// ChunksSent counts chunks transmitted so far. It only grows and
	// never exceeds TotalChunks.
	ChunksSent int
	Status     Status
}

// Sender is the connection an Uploader writes to. *session.Manager
// satisfies it.
type Sender interface {
	Send(ctx context.Context, message protocol.Message) error
	Connected() bool
}

// Observer is told about upload progress. Methods are called on the
// uploading goroutine, in order, and must not block for long.
type Observer interface {
	UploadStarted(fileName string, totalChunks int)
	ChunkSent(fileName string, index, totalChunks int)
	UploadCompleted(fileName string, totalChunks int)
	UploadFailed(fileName string, err error)
}

// Config configures an Uploader.
type Config struct {
	// Sender is required.
	Sender Sender
	// Observer is optional.
	Observer Observer
	// Throttle is the pause after each chunk. Zero means
	// DefaultThrottle.
	Throttle time.Duration
	// Clock drives the throttle and message timestamps. Nil means
	// clock.Real().
	Clock  clock.Clock
	Logger *slog.Logger
}

// Uploader sends files over a Sender, one at a time.
type Uploader struct {
	sender   Sender
	observer Observer
	throttle time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	progress Progress
}

// New returns an Idle Uploader.
func New(config Config) (*Uploader, error) {
	if config.Sender == nil {
		return nil, fmt.Errorf("upload: Sender is required")
	}
	throttle := config.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		sender:   config.Sender,
		observer: config.Observer,
		throttle: throttle,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Progress returns the state of the most recent upload.
func (u *Uploader) Progress() Progress {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.progress
}

// Upload sends source and blocks until file_complete has been written
// or the transfer aborts.
//
// If the Sender is not connected, Upload returns a
// *session.ConnectionError and sends nothing. Any failure after the
// first chunk is returned as *UploadError and reported to the
// Observer; the connection itself is left alone. Cancelling ctx
// aborts the transfer the same way.
func (u *Uploader) Upload(ctx context.Context, source Source) error {
	if !u.sender.Connected() {
		return &session.ConnectionError{Op: "upload", Err: session.ErrNotConnected}
	}

	producer := NewProducer(source)
	total := producer.Total()

	u.mu.Lock()
	if u.progress.Status == Sending {
		u.mu.Unlock()
		return ErrUploadInProgress
	}
	u.progress = Progress{FileName: source.Name, TotalChunks: total, Status: Sending}
	u.mu.Unlock()

	u.logger.Info("upload started", "file", source.Name, "bytes", source.Size, "chunks", total)
	if u.observer != nil {
		u.observer.UploadStarted(source.Name, total)
	}

	if err := u.send(ctx, source.Name, producer); err != nil {
		u.setStatus(Failed)
		u.logger.Error("upload failed", "file", source.Name, "error", err)
		if u.observer != nil {
			u.observer.UploadFailed(source.Name, err)
		}
		return err
	}

	u.setStatus(Completed)
	u.logger.Info("upload completed", "file", source.Name, "chunks", total)
	if u.observer != nil {
		u.observer.UploadCompleted(source.Name, total)
	}
	return nil
}

func (u *Uploader) send(ctx context.Context, fileName string, producer *Producer) error {
	total := producer.Total()
	for {
		chunk, err := producer.Next()
		if err != nil {
			return &UploadError{FileName: fileName, ChunkIndex: u.Progress().ChunksSent, TotalChunks: total, Err: err}
		}
		if chunk == nil {
			break
		}

		message, err := protocol.New(protocol.TypeFileChunk, protocol.FileChunk{
			ChunkIndex:  chunk.Index,
			TotalChunks: total,
			FileName:    fileName,
			Data:        chunk.Data,
		}, u.clock.Now())
		if err != nil {
			return &UploadError{FileName: fileName, ChunkIndex: chunk.Index, TotalChunks: total, Err: err}
		}
		if err := u.sender.Send(ctx, message); err != nil {
			return &UploadError{FileName: fileName, ChunkIndex: chunk.Index, TotalChunks: total, Err: err}
		}

		u.mu.Lock()
		u.progress.ChunksSent = chunk.Index + 1
		u.mu.Unlock()
		u.logger.Debug("chunk sent", "file", fileName, "chunk", chunk.Index+1, "total", total, "bytes", chunk.Size)
		if u.observer != nil {
			u.observer.ChunkSent(fileName, chunk.Index, total)
		}

		select {
		case <-u.clock.After(u.throttle):
		case <-ctx.Done():
			return &UploadError{FileName: fileName, ChunkIndex: chunk.Index + 1, TotalChunks: total, Err: ctx.Err()}
		}
	}

	digest, err := producer.Digest()
	if err != nil {
		return &UploadError{FileName: fileName, ChunkIndex: total, TotalChunks: total, Err: err}
	}
	message, err := protocol.New(protocol.TypeFileComplete, protocol.FileComplete{
		FileName:    fileName,
		TotalChunks: total,
		Digest:      digest,
	}, u.clock.Now())
	if err == nil {
		err = u.sender.Send(ctx, message)
	}
	if err != nil {
		return &UploadError{FileName: fileName, ChunkIndex: total, TotalChunks: total, Err: err}
	}
	return nil
}

func (u *Uploader) setStatus(status Status) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.progress.Status = status
}
