// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codeshield/proctor/lib/config"
)

func TestNewLoggerFormats(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		terminal bool
		wantJSON bool
	}{
		{"auto piped", "auto", false, true},
		{"auto terminal", "auto", true, false},
		{"forced json", "json", true, true},
		{"forced text", "text", false, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var output bytes.Buffer
			logger, err := newLogger(&output, test.terminal, config.LoggingConfig{Level: "info", Format: test.format})
			if err != nil {
				t.Fatalf("newLogger: %v", err)
			}
			logger.Info("monitoring started", "session_id", "s-1")

			var record map[string]any
			isJSON := json.Unmarshal(output.Bytes(), &record) == nil
			if isJSON != test.wantJSON {
				t.Fatalf("output %q: JSON = %v, want %v", output.String(), isJSON, test.wantJSON)
			}
			if !strings.Contains(output.String(), "s-1") {
				t.Errorf("output %q lacks the session id", output.String())
			}
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var output bytes.Buffer
	logger, err := newLogger(&output, false, config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(output.String(), "dropped") || !strings.Contains(output.String(), "kept") {
		t.Errorf("level filtering wrong: %q", output.String())
	}
}

func TestNewLoggerRejectsBadConfig(t *testing.T) {
	var output bytes.Buffer
	if _, err := newLogger(&output, false, config.LoggingConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("accepted an unknown level")
	}
	if _, err := newLogger(&output, false, config.LoggingConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("accepted an unknown format")
	}
}
