// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// flightlink connects a flight log viewer session to the analysis
// service: it uploads logs, pushes the viewer's telemetry, and carries
// the chat about the flight.
//
// Two modes of operation:
//
// Interactive (default when stdin and stdout are terminals): a
// full-screen chat view with a status bar. Slash commands upload logs
// and reconnect.
//
// Plain (--plain, or when not attached to a terminal): every stdin
// line is sent as a question and every new history entry is printed.
// At end of input the command waits for outstanding answers and
// uploads, then exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/uavlogviewer/flightlink/client"
	"github.com/uavlogviewer/flightlink/lib/chatui"
	"github.com/uavlogviewer/flightlink/lib/config"
	"github.com/uavlogviewer/flightlink/lib/version"
	"github.com/uavlogviewer/flightlink/session"
	"github.com/uavlogviewer/flightlink/telemetry"
	"github.com/uavlogviewer/flightlink/upload"
)

// healthTimeout bounds --health.
const healthTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	server       string
	identityFile string
	clientID     string
	uploadPath   string
	telemetry    string
	plain        bool
	health       bool
	logLevel     string
	logFormat    string
	logFile      string
	showVersion  bool
}

func run() error {
	var opts options
	flagSet := newFlagSet(&opts)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		fmt.Println("flightlink " + version.Full())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, flagSet, opts); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	interactive := !opts.plain && !opts.health &&
		term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	logger, closeLog, err := newLogger(cfg.Log, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.health {
		return probeHealth(ctx, cfg.Server.Endpoint, os.Stdout)
	}

	clientID, err := resolveClientID(cfg)
	if err != nil {
		return err
	}

	var store telemetry.Store
	if cfg.Telemetry.File != "" {
		memory, err := telemetry.LoadFile(cfg.Telemetry.File)
		if err != nil {
			return err
		}
		reloadTelemetryOnHangup(ctx, cfg.Telemetry.File, memory, logger)
		store = memory
	}

	// Opened before the client so it is closed after the client has
	// finished any upload reading from it.
	var logFile *upload.File
	if opts.uploadPath != "" {
		logFile, err = upload.OpenFile(opts.uploadPath)
		if err != nil {
			return err
		}
		defer logFile.Close()
	}

	viewerClient, err := client.New(client.Config{
		Session: session.Config{
			Endpoint: cfg.Server.Endpoint,
			ClientID: clientID,
			Policy: session.Policy{
				MaxReconnectAttempts: cfg.Reconnect.MaxAttempts,
				Backoff:              cfg.Reconnect.Backoff,
			},
		},
		Telemetry:      store,
		UploadThrottle: cfg.Upload.Throttle,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer viewerClient.Close()

	logger.Info("starting",
		"version", version.Info(),
		"endpoint", cfg.Server.Endpoint,
		"client_id", clientID,
		"interactive", interactive,
	)

	if logFile != nil {
		viewerClient.NotifyFileReady(logFile.Source)
	}

	if interactive {
		return runInteractive(ctx, viewerClient)
	}
	return runPlain(ctx, viewerClient, plainOptions{
		in:           os.Stdin,
		out:          os.Stdout,
		expectUpload: logFile != nil,
	})
}

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("flightlink", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to flightlink.yaml (default: $"+config.EnvVar+", then built-in defaults)")
	flagSet.StringVar(&opts.server, "server", "", "analysis service as host:port or a ws:// or wss:// URL")
	flagSet.StringVar(&opts.identityFile, "identity-file", "", "file holding the persistent client id")
	flagSet.StringVar(&opts.clientID, "client-id", "", "use this client id instead of the identity file")
	flagSet.StringVar(&opts.uploadPath, "upload", "", "upload this flight log once connected")
	flagSet.StringVar(&opts.telemetry, "telemetry", "", "JSON or JSONC telemetry document to push (reloaded on SIGHUP)")
	flagSet.BoolVar(&opts.plain, "plain", false, "line mode: read questions from stdin, print history to stdout")
	flagSet.BoolVar(&opts.health, "health", false, "probe the service's /health endpoint and exit")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "text or json")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write logs to this file")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `flightlink: chat with the flight log analysis service.

Connects to the analysis service, uploads flight logs, keeps the
service's copy of the viewer's telemetry current, and carries the chat
about the flight.

Usage:
  flightlink [flags]

Examples:
  # Interactive session against a local service
  flightlink --server localhost:8000

  # Upload a log and ask one question from a script
  echo "What was the maximum altitude?" | flightlink --plain --upload 00000042.BIN

  # Check the service is up
  flightlink --health --server analysis.example.com:443

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}

func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv(config.EnvVar) != "":
		return config.Load()
	default:
		return config.Resolved(), nil
	}
}

// applyFlags overrides configuration with the flags that were set.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, opts options) error {
	if flagSet.Changed("server") {
		endpoint, err := endpointFromServer(opts.server)
		if err != nil {
			return err
		}
		cfg.Server.Endpoint = endpoint
	}
	if flagSet.Changed("client-id") {
		cfg.Server.ClientID = opts.clientID
	}
	if flagSet.Changed("identity-file") {
		cfg.Paths.IdentityFile = opts.identityFile
	}
	if flagSet.Changed("telemetry") {
		cfg.Telemetry.File = opts.telemetry
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if flagSet.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	return nil
}

// endpointFromServer accepts a websocket URL as is and turns host:port
// into ws://host:port/ws.
func endpointFromServer(server string) (string, error) {
	if strings.Contains(server, "://") {
		return server, nil
	}
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		return "", fmt.Errorf("--server %q: want host:port or a ws:// URL: %w", server, err)
	}
	if host == "" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, port) + "/ws", nil
}

// newLogger builds the process logger. The interactive view owns the
// terminal, so without a log file its logs are discarded.
func newLogger(logConfig config.LogConfig, interactive bool) (*slog.Logger, func(), error) {
	level, err := logConfig.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = os.Stderr
	closeOutput := func() {}
	switch {
	case logConfig.File != "":
		file, err := os.OpenFile(logConfig.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		output = file
		closeOutput = func() { file.Close() }
	case interactive:
		output = io.Discard
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logConfig.Format == "json" {
		handler = slog.NewJSONHandler(output, handlerOptions)
	} else {
		handler = slog.NewTextHandler(output, handlerOptions)
	}
	return slog.New(handler), closeOutput, nil
}

// resolveClientID returns the configured client id, or the persistent
// one from the identity file.
func resolveClientID(cfg *config.Config) (string, error) {
	if cfg.Server.ClientID != "" {
		return cfg.Server.ClientID, nil
	}
	if err := cfg.EnsurePaths(); err != nil {
		return "", err
	}
	identity, err := session.LoadOrCreateIdentity(cfg.Paths.IdentityFile, time.Now())
	if err != nil {
		return "", err
	}
	return identity.ClientID, nil
}

func probeHealth(ctx context.Context, endpoint string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	health, err := session.ProbeHealth(ctx, nil, endpoint)
	if err != nil {
		return err
	}
	if !health.Healthy() {
		return fmt.Errorf("service reports status %q", health.Status)
	}
	fmt.Fprintf(out, "healthy (%s)\n", health.Timestamp)
	return nil
}

// reloadTelemetryOnHangup re-reads the telemetry document on SIGHUP.
// Applying it publishes a change, which pushes a fresh snapshot.
func reloadTelemetryOnHangup(ctx context.Context, path string, store *telemetry.MemoryStore, logger *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hangup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hangup:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("telemetry reload failed", "path", path, "error", err)
				continue
			}
			document, err := telemetry.Parse(data)
			if err != nil {
				logger.Warn("telemetry reload failed", "path", path, "error", err)
				continue
			}
			store.Apply(document)
			logger.Info("telemetry reloaded", "path", path)
		}
	}()
}

func runInteractive(ctx context.Context, viewerClient *client.Client) error {
	model := chatui.NewModel(ctx, viewerClient)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
