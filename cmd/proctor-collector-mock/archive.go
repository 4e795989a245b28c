// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// archiveCompression selects the archive's stream format.
type archiveCompression string

const (
	// compressionZstd favors ratio; event JSON compresses well.
	compressionZstd archiveCompression = "zstd"

	// compressionLZ4 favors speed for long load-test runs.
	compressionLZ4 archiveCompression = "lz4"
)

func parseArchiveCompression(name string) (archiveCompression, error) {
	switch archiveCompression(name) {
	case compressionZstd, compressionLZ4:
		return archiveCompression(name), nil
	default:
		return "", fmt.Errorf("unknown archive compression %q (want zstd or lz4)", name)
	}
}

// archiveRecord is one line of the archive.
type archiveRecord struct {
	SessionID string      `json:"session_id"`
	Event     storedEvent `json:"event"`
}

// archive appends received events as JSON lines to a compressed stream.
type archive struct {
	mu         sync.Mutex
	compressor io.WriteCloser
	lines      *json.Encoder
	closer     io.Closer
}

// openArchive creates (or truncates) the archive file at path.
func openArchive(path string, compression archiveCompression) (*archive, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	archived, err := newArchive(file, file, compression)
	if err != nil {
		file.Close()
		return nil, err
	}
	return archived, nil
}

// newArchive writes to output and closes closer (which may be nil)
// on Close.
func newArchive(output io.Writer, closer io.Closer, compression archiveCompression) (*archive, error) {
	var compressor io.WriteCloser
	switch compression {
	case compressionZstd:
		encoder, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		compressor = encoder
	case compressionLZ4:
		compressor = lz4.NewWriter(output)
	default:
		return nil, fmt.Errorf("unsupported archive compression %q", compression)
	}
	return &archive{compressor: compressor, lines: json.NewEncoder(compressor), closer: closer}, nil
}

func (a *archive) append(sessionID string, event storedEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lines.Encode(archiveRecord{SessionID: sessionID, Event: event})
}

// Close flushes the compressed stream and closes the underlying file.
func (a *archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.compressor.Close()
	if a.closer != nil {
		if closeErr := a.closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
