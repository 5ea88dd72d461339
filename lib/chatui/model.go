// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uavlogviewer/flightlink/lib/event"
	"github.com/uavlogviewer/flightlink/lib/tui"
	"github.com/uavlogviewer/flightlink/router"
	"github.com/uavlogviewer/flightlink/session"
	"github.com/uavlogviewer/flightlink/upload"
)

// Backend is the session the view drives. *client.Client implements it.
type Backend interface {
	Router() *router.Router
	Status() session.Status
	OnStatus(handler func(session.Status)) *event.Subscription
	ClientID() string
	Connect(ctx context.Context) error
	SendChat(ctx context.Context, text string) error
	Upload(ctx context.Context, source upload.Source) error
}

// noticeFadeDelay is how long a status bar notice stays visible.
const noticeFadeDelay = 5 * time.Second

// inputCharLimit bounds a single chat message.
const inputCharLimit = 4000

// Layout rows outside the viewport: status bar and input.
const chromeHeight = 2

type (
	sendResultMsg    struct{ err error }
	connectResultMsg struct{ err error }
	uploadResultMsg  struct {
		name string
		err  error
	}
	// noticeFadeMsg clears the notice it was scheduled for, unless a
	// newer notice replaced it.
	noticeFadeMsg struct{ id int }
)

// notice is a transient message in the status bar.
type notice struct {
	text  string
	isErr bool
	id    int
}

// Model is the bubbletea model for the chat view.
type Model struct {
	ctx     context.Context
	backend Backend
	feed    *feed
	keys    KeyMap
	theme   tui.Theme

	viewport viewport.Model
	input    textinput.Model

	state    router.ChatState
	status   session.Status
	clientID string

	// rendered caches one rendered block per history entry at
	// renderedWidth. History is append-only, so only new entries are
	// rendered on update.
	rendered      []string
	renderedWidth int

	notice     notice
	noticeSeq  int
	width      int
	height     int
	ready      bool
	autoFollow bool
}

// NewModel builds the view over backend. ctx bounds the commands the
// view starts. Call Close after the program exits.
func NewModel(ctx context.Context, backend Backend) Model {
	input := textinput.New()
	input.Prompt = "› "
	input.Placeholder = "Ask about the flight log, or /upload <path>"
	input.CharLimit = inputCharLimit
	input.Focus()

	return Model{
		ctx:        ctx,
		backend:    backend,
		feed:       newFeed(backend),
		keys:       DefaultKeyMap,
		theme:      tui.DefaultTheme,
		viewport:   viewport.New(0, 0),
		input:      input,
		state:      backend.Router().State(),
		status:     backend.Status(),
		clientID:   backend.ClientID(),
		autoFollow: true,
	}
}

// Close releases the view's subscriptions to the backend.
func (model Model) Close() {
	model.feed.close()
}

// Init implements tea.Model. It starts listening to the backend and
// connects if nothing has yet.
func (model Model) Init() tea.Cmd {
	commands := []tea.Cmd{textinput.Blink, model.feed.listen()}
	if model.status.State == session.Disconnected {
		commands = append(commands, model.connect())
	}
	return tea.Batch(commands...)
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		return model, nil

	case feedMsg:
		if message.status != nil {
			model.status = *message.status
			model.clientID = model.backend.ClientID()
		}
		if message.state != nil {
			model.state = *message.state
			model.refreshHistory(message.follow)
		}
		return model, model.feed.listen()

	case sendResultMsg:
		if message.err != nil {
			return model.setNotice("message not sent: "+message.err.Error(), true)
		}
		return model, nil

	case connectResultMsg:
		if message.err != nil {
			return model.setNotice("connect: "+message.err.Error(), true)
		}
		return model, nil

	case uploadResultMsg:
		if message.err != nil {
			// The failure is also in history.
			return model.setNotice(fmt.Sprintf("upload of %s: %v", message.name, message.err), true)
		}
		return model.setNotice("sent "+message.name, false)

	case noticeFadeMsg:
		if message.id == model.notice.id {
			model.notice = notice{}
		}
		return model, nil
	}

	var command tea.Cmd
	model.input, command = model.input.Update(message)
	return model, command
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.Submit):
		return model.submit()

	case key.Matches(message, model.keys.LineUp):
		model.viewport.LineUp(1)
	case key.Matches(message, model.keys.LineDown):
		model.viewport.LineDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.viewport.HalfViewUp()
	case key.Matches(message, model.keys.PageDown):
		model.viewport.HalfViewDown()
	case key.Matches(message, model.keys.Top):
		model.viewport.GotoTop()
	case key.Matches(message, model.keys.Bottom):
		model.viewport.GotoBottom()

	default:
		var command tea.Cmd
		model.input, command = model.input.Update(message)
		return model, command
	}
	model.autoFollow = model.viewport.AtBottom()
	return model, nil
}

// submit handles Enter: a slash command or a chat message.
func (model Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(model.input.Value())
	if line == "" {
		return model, nil
	}

	if strings.HasPrefix(line, "/") {
		model.input.Reset()
		return model.runCommand(line)
	}

	if !model.state.ChatEnabled {
		// The text stays in the input so it can be sent later.
		if model.state.ConnectionFailed {
			return model.setNotice("not connected; /reconnect to continue", true)
		}
		return model.setNotice("chat is disabled while the log uploads", true)
	}
	model.input.Reset()
	model.autoFollow = true
	return model, model.send(line)
}

func (model Model) runCommand(line string) (tea.Model, tea.Cmd) {
	name, argument, _ := strings.Cut(line, " ")
	argument = strings.TrimSpace(argument)

	switch name {
	case "/quit", "/exit":
		return model, tea.Quit

	case "/reconnect":
		if model.status.State == session.Connected {
			return model.setNotice("already connected", false)
		}
		return model, model.connect()

	case "/upload":
		if argument == "" {
			return model.setNotice("usage: /upload <path>", true)
		}
		if model.state.UploadingFile {
			return model.setNotice("an upload is already in progress", true)
		}
		model.autoFollow = true
		return model, model.upload(argument)

	case "/help":
		return model.setNotice("/upload <path>  /reconnect  /quit", false)

	default:
		return model.setNotice("unknown command "+name, true)
	}
}

func (model Model) send(text string) tea.Cmd {
	ctx, backend := model.ctx, model.backend
	return func() tea.Msg {
		return sendResultMsg{err: backend.SendChat(ctx, text)}
	}
}

func (model Model) connect() tea.Cmd {
	ctx, backend := model.ctx, model.backend
	return func() tea.Msg {
		return connectResultMsg{err: backend.Connect(ctx)}
	}
}

func (model Model) upload(path string) tea.Cmd {
	ctx, backend := model.ctx, model.backend
	return func() tea.Msg {
		file, err := upload.OpenFile(path)
		if err != nil {
			return uploadResultMsg{name: path, err: err}
		}
		defer file.Close()
		return uploadResultMsg{name: file.Name, err: backend.Upload(ctx, file.Source)}
	}
}

func (model Model) setNotice(text string, isErr bool) (tea.Model, tea.Cmd) {
	model.noticeSeq++
	model.notice = notice{text: text, isErr: isErr, id: model.noticeSeq}
	id := model.noticeSeq
	return model, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{id: id}
	})
}

// layout sizes the viewport and input to the window and re-renders
// history when the width changed.
func (model *Model) layout() {
	if !model.ready {
		return
	}
	// One column is kept for the scrollbar.
	model.viewport.Width = max(model.width-1, 1)
	model.viewport.Height = max(model.height-chromeHeight, 1)
	model.input.Width = max(model.width-len(model.input.Prompt)-1, 1)
	model.refreshHistory(model.autoFollow)
}

// refreshHistory renders entries not yet rendered and updates the
// viewport. follow scrolls to the newest entry.
func (model *Model) refreshHistory(follow bool) {
	if !model.ready {
		return
	}
	width := model.viewport.Width
	if width != model.renderedWidth || len(model.state.History) < len(model.rendered) {
		model.rendered = nil
		model.renderedWidth = width
	}
	for _, entry := range model.state.History[len(model.rendered):] {
		model.rendered = append(model.rendered, renderEntry(entry, model.theme, width))
	}

	model.viewport.SetContent(model.historyContent())
	if follow || model.autoFollow {
		model.viewport.GotoBottom()
		model.autoFollow = true
	}
}
