// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uavlogviewer/flightlink/client"
	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
	"github.com/uavlogviewer/flightlink/upload"
)

// plainPollInterval re-checks wait conditions in case a change arrived
// without a router update.
const plainPollInterval = 250 * time.Millisecond

// errConnectionFailed ends line mode when reconnection gave up.
var errConnectionFailed = errors.New("connection to the analysis service failed")

// plainBackend is the part of *client.Client line mode uses.
type plainBackend interface {
	Router() *router.Router
	Status() session.Status
	OnStatus(handler func(session.Status)) *event.Subscription
	Connect(ctx context.Context) error
	SendChat(ctx context.Context, text string) error
	UploadProgress() upload.Progress
}

type plainOptions struct {
	in  io.Reader
	out io.Writer
	// expectUpload makes the final wait include an upload that was
	// requested at start.
	expectUpload bool
}

// runPlain sends every line of opts.in as chat and prints history as
// it grows. At end of input it waits until the service has answered
// and any upload has finished. An interrupted ctx ends it quietly.
func runPlain(ctx context.Context, backend plainBackend, opts plainOptions) error {
	plain := newPlainSession(backend, opts.out)
	defer plain.close()

	if err := backend.Connect(ctx); err != nil {
		// The session keeps retrying; waits below end on Failed.
		slog.Warn("connect failed, retrying", "error", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(opts.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("reading input", "error", err)
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := plain.waitUntil(ctx, readyToSend); err != nil {
			return quietOnCancel(ctx, err)
		}
		if err := backend.SendChat(ctx, line); err != nil && !errors.Is(err, client.ErrChatDisabled) {
			// Recorded in history, which the printer shows.
			slog.Debug("chat not sent", "error", err)
		}
	}

	err := plain.waitUntil(ctx, func(_ session.Status, state router.ChatState, progress upload.Progress) bool {
		return settled(state, progress, opts.expectUpload)
	})
	return quietOnCancel(ctx, err)
}

func quietOnCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readyToSend holds when chat can go out right away.
func readyToSend(status session.Status, state router.ChatState, _ upload.Progress) bool {
	return status.State == session.Connected && state.ChatEnabled
}

// settled holds when nothing more is expected from the service: no
// progress flag is set, the last question has an answer, and a
// requested upload has ended one way or the other.
func settled(state router.ChatState, progress upload.Progress, expectUpload bool) bool {
	if state.Busy() || progress.Status == upload.Sending {
		return false
	}
	if last, ok := state.Last(); ok && last.Origin == router.OriginUser {
		return false
	}
	if expectUpload {
		switch progress.Status {
		case upload.Completed, upload.Failed:
		default:
			// Rejected before the transfer started.
			return slices.ContainsFunc(state.History, router.IsUploadFailure)
		}
	}
	return true
}

// plainSession prints history entries as they arrive and wakes waiters
// on every router update or status change.
type plainSession struct {
	backend plainBackend
	out     io.Writer
	changed chan struct{}

	mu      sync.Mutex
	printed int

	subscriptions event.Group
}

func newPlainSession(backend plainBackend, out io.Writer) *plainSession {
	s := &plainSession{
		backend: backend,
		out:     out,
		changed: make(chan struct{}, 1),
	}
	s.subscriptions.Add(backend.Router().Subscribe(func(update router.Update) {
		s.print(update.State.History)
		s.notify()
	}))
	s.subscriptions.Add(backend.OnStatus(func(session.Status) { s.notify() }))
	s.print(backend.Router().State().History)
	return s
}

func (s *plainSession) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// print writes the entries of history not yet printed.
func (s *plainSession) print(history []router.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ; s.printed < len(history); s.printed++ {
		fmt.Fprintln(s.out, formatEntry(history[s.printed]))
	}
}

// waitUntil blocks until condition holds for the current state. It
// returns errConnectionFailed once the session gave up reconnecting.
func (s *plainSession) waitUntil(ctx context.Context, condition func(session.Status, router.ChatState, upload.Progress) bool) error {
	ticker := time.NewTicker(plainPollInterval)
	defer ticker.Stop()
	for {
		status := s.backend.Status()
		if status.State == session.Failed {
			return errConnectionFailed
		}
		if condition(status, s.backend.Router().State(), s.backend.UploadProgress()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changed:
		case <-ticker.C:
		}
	}
}

func (s *plainSession) close() {
	s.subscriptions.Close()
}

// formatEntry renders an entry for line mode: questions are marked
// with "> ", notices with "* ", and answers are printed as they are.
func formatEntry(entry router.Entry) string {
	switch entry.Origin {
	case router.OriginUser:
		return "> " + entry.Text
	case router.OriginServer:
		return entry.Text
	default:
		return "* " + entry.Text
	}
}
