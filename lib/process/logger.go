// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/codeshield/proctor/lib/config"
)

// NewLogger returns a logger on stderr configured by logging.
func NewLogger(logging config.LoggingConfig) (*slog.Logger, error) {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), logging)
}

func newLogger(output io.Writer, terminal bool, logging config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
		return nil, fmt.Errorf("logging level %q: %w", logging.Level, err)
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch logging.Format {
	case "text":
		handler = slog.NewTextHandler(output, options)
	case "json":
		handler = slog.NewJSONHandler(output, options)
	case "", "auto":
		if terminal {
			handler = slog.NewTextHandler(output, options)
		} else {
			handler = slog.NewJSONHandler(output, options)
		}
	default:
		return nil, fmt.Errorf("unknown logging format %q", logging.Format)
	}
	return slog.New(handler), nil
}
