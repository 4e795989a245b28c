// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Proctor-agent runs one monitored exam session outside a browser.
//
// Camera frames and microphone spectra come from recorded captures on
// disk (media.frame_directory and media.spectrum_file in the config).
// Environment events arrive as JSON lines on stdin, or from --events:
//
//	{"kind": "visibility_hidden", "url": "https://exam.example.com/q/1"}
//	{"kind": "key_down", "key": "c", "ctrl": true}
//	{"kind": "editor_change", "code_length": 412}
//	{"kind": "set_question", "question_id": "q-2", "code_length": 96}
//
// For every event the agent writes one JSON line to stdout telling the
// host whether to suppress the event's default action. Findings are
// streamed to the collector named by telemetry.collector_url.
//
// The agent runs until SIGINT or SIGTERM, until the candidate is
// disqualified, or, with --exit-on-eof, until the event stream ends.
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/codeshield/proctor/lib/codec"
	"github.com/codeshield/proctor/lib/config"
	"github.com/codeshield/proctor/lib/heuristic"
	"github.com/codeshield/proctor/lib/media"
	"github.com/codeshield/proctor/lib/process"
	"github.com/codeshield/proctor/lib/schema/integrity"
	"github.com/codeshield/proctor/lib/version"
	"github.com/codeshield/proctor/monitor"
	"github.com/codeshield/proctor/telemetry"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		sessionID   string
		questionID  string
		token       string
		eventsPath  string
		codeLength  int
		exitOnEOF   bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("proctor-agent", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "config file (default: $PROCTOR_CONFIG)")
	flagSet.StringVar(&sessionID, "session", "", "exam session id (required)")
	flagSet.StringVar(&questionID, "question", "", "id of the first question shown")
	flagSet.StringVar(&token, "token", os.Getenv("PROCTOR_TOKEN"), "collector auth token (default: $PROCTOR_TOKEN)")
	flagSet.StringVar(&eventsPath, "events", "-", "JSON-lines environment event stream, - for stdin")
	flagSet.IntVar(&codeLength, "code-length", 0, "length of the editor's starter code")
	flagSet.BoolVar(&exitOnEOF, "exit-on-eof", false, "end the session when the event stream ends")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("proctor-agent")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := process.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	logger = logger.With("session_id", sessionID)

	session := integrity.Session{SessionID: sessionID, QuestionID: questionID, AuthToken: token}
	if err := session.Validate(); err != nil {
		return err
	}

	events, closeEvents, err := openEvents(eventsPath)
	if err != nil {
		return err
	}
	defer closeEvents()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	encoding, err := codec.ParseEncoding(cfg.Telemetry.Encoding)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent("proctor-agent"))
	channel, err := telemetry.NewChannel(telemetry.Config{
		CollectorURL: cfg.Telemetry.CollectorURL,
		Dialer: &telemetry.WebSocketDialer{
			Binary:           encoding.Binary(),
			HandshakeTimeout: cfg.Telemetry.DialTimeout,
			Header:           header,
		},
		Encoding:         encoding,
		MaxReconnects:    reconnectLimit(cfg.Telemetry.MaxReconnects),
		ReconnectBackoff: cfg.Telemetry.ReconnectBackoff,
		DialTimeout:      cfg.Telemetry.DialTimeout,
		CadenceWindow:    cfg.Telemetry.CadenceWindow,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	sessionMonitor, err := monitor.New(monitor.Config{
		Media: &media.DirectoryProvider{
			FrameDirectory: cfg.Media.FrameDirectory,
			SpectrumFile:   cfg.Media.SpectrumFile,
			SpectrumBins:   cfg.Noise.SpectrumBins,
		},
		Telemetry:         channel,
		Classifier:        heuristic.NewClassifier(cfg.Face.MinSkinRatio, cfg.Face.MaxSkinRatio, cfg.Noise.Threshold),
		SampleInterval:    cfg.Monitor.SampleInterval,
		ViolationLimit:    cfg.Monitor.ViolationLimit,
		HistorySize:       cfg.Monitor.HistorySize,
		InitialCodeLength: codeLength,
		OnDisqualified: func() {
			logger.Warn("candidate disqualified; ending session")
			cancel()
		},
		OnWarning: func(finding integrity.Finding, count, limit int) {
			logger.Warn("integrity warning",
				"kind", finding.Kind(),
				"message", finding.Message(),
				"count", count,
				"limit", limit,
			)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if err := sessionMonitor.Start(ctx, session); err != nil {
		return err
	}
	defer sessionMonitor.Stop()

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- pumpEvents(ctx, events, os.Stdout, sessionMonitor)
	}()

	select {
	case <-ctx.Done():
	case err := <-pumpDone:
		if err != nil {
			logger.Error("reading environment events", "error", err)
		}
		if err == nil && !exitOnEOF {
			<-ctx.Done()
		}
	}

	sessionMonitor.Stop()
	status := sessionMonitor.Status()
	logger.Info("session ended",
		"violations", status.Violations,
		"limit", status.Limit,
		"disqualified", status.Disqualified,
		"face", status.Face.String(),
	)
	if status.Disqualified {
		return errors.New("candidate disqualified")
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reconnectLimit maps the config value, where 0 means no reconnects,
// onto the channel's, where 0 means the default.
func reconnectLimit(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}

func openEvents(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}
