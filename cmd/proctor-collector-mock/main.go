// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

// Proctor-collector-mock is a stand-in monitoring collector for
// integration tests and local runs of proctor-agent.
//
// It accepts the telemetry websocket at
// GET /api/monitoring/sessions/{id}?token=..., stores every envelope in
// memory, and answers each one with {"status": "received"}. Events of the kinds the collector tallies
// (no_face, multiple_faces, tab_switch, fullscreen_exit) first get a
// {"status": "warning", "violation_count": n} reply. A missing token, or
// one that differs from --token when set, is closed with code 4001.
//
// Stored events are served as JSON:
//
//	GET /api/monitoring/sessions/{id}/events      every event, oldest first
//	GET /api/monitoring/sessions/{id}/violations  events of reviewable kinds
//	GET /api/monitoring/sessions/{id}/stats       total_keystrokes, total_pastes, total_violations
//
// With --archive, every stored event is also appended as a JSON line to
// a zstd-compressed file (lz4 with --archive-compression=lz4).
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/codeshield/proctor/lib/clock"
	"github.com/codeshield/proctor/lib/config"
	"github.com/codeshield/proctor/lib/process"
	"github.com/codeshield/proctor/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		listenAddress string
		token         string
		archivePath   string
		compression   string
		logLevel      string
		logFormat     string
		showVersion   bool
	)

	flagSet := pflag.NewFlagSet("proctor-collector-mock", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", "127.0.0.1:8000", "address to listen on")
	flagSet.StringVar(&token, "token", "", "required session token (default: accept any non-empty token)")
	flagSet.StringVar(&archivePath, "archive", "", "append received events to this compressed JSON-lines file")
	flagSet.StringVar(&compression, "archive-compression", "zstd", "archive stream format: zstd or lz4")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.StringVar(&logFormat, "log-format", "auto", "json, text, or auto")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("proctor-collector-mock")
		return nil
	}

	logger, err := process.NewLogger(config.LoggingConfig{Level: logLevel, Format: logFormat})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &collector{
		store:  newEventStore(clock.Real()),
		token:  token,
		logger: logger,
	}
	if archivePath != "" {
		format, err := parseArchiveCompression(compression)
		if err != nil {
			return err
		}
		server.archive, err = openArchive(archivePath, format)
		if err != nil {
			return err
		}
		defer func() {
			if err := server.archive.Close(); err != nil {
				logger.Error("closing archive", "path", archivePath, "error", err)
			}
		}()
	}

	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- httpServer.Serve(listener)
	}()

	logger.Info("collector mock running",
		"address", listener.Addr().String(),
		"archive", archivePath,
		"version", version.Short(),
	)

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}
	logger.Info("shutting down")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownContext); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	if err := <-serveDone; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
