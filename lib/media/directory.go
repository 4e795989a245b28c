// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// DirectoryProvider serves recorded captures from disk. Frames are the
// PNG and JPEG files in FrameDirectory, replayed in lexical order and
// cycled. Spectra are fixed-size records of SpectrumBins bytes read
// from SpectrumFile, also cycled; with no SpectrumFile the source has
// no audio track.
//
// A missing FrameDirectory is reported as ErrPermissionDenied, the
// same outcome a candidate refusing the camera produces.
type DirectoryProvider struct {
	FrameDirectory string
	SpectrumFile   string
	// SpectrumBins defaults to DefaultSpectrumBins.
	SpectrumBins int
}

// Acquire loads the frame list and spectrum records.
func (p *DirectoryProvider) Acquire(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.FrameDirectory)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("opening frame directory %s: %w", p.FrameDirectory, ErrPermissionDenied)
		}
		return nil, fmt.Errorf("opening frame directory %s: %w", p.FrameDirectory, err)
	}

	var frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".png", ".jpg", ".jpeg":
			frames = append(frames, filepath.Join(p.FrameDirectory, entry.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s: %w", p.FrameDirectory, ErrUnavailable)
	}
	slices.Sort(frames)

	source := &directorySource{frames: frames}

	if p.SpectrumFile != "" {
		bins := p.SpectrumBins
		if bins <= 0 {
			bins = DefaultSpectrumBins
		}
		data, err := os.ReadFile(p.SpectrumFile)
		if err != nil {
			return nil, fmt.Errorf("reading spectrum file: %w", err)
		}
		for offset := 0; offset+bins <= len(data); offset += bins {
			source.spectra = append(source.spectra, data[offset:offset+bins])
		}
		if len(source.spectra) == 0 {
			return nil, fmt.Errorf("spectrum file %s holds no complete %d-bin record: %w", p.SpectrumFile, bins, ErrUnavailable)
		}
	}

	return source, nil
}

type directorySource struct {
	mu       sync.Mutex
	frames   []string
	spectra  [][]byte
	next     int
	released bool
}

func (s *directorySource) Snapshot() (Sample, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return Sample{}, ErrUnavailable
	}
	index := s.next
	s.next++
	path := s.frames[index%len(s.frames)]
	var spectrum []byte
	if len(s.spectra) > 0 {
		spectrum = s.spectra[index%len(s.spectra)]
	}
	s.mu.Unlock()

	frame, err := decodeFrame(path)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Frame: frame, Spectrum: spectrum}, nil
}

func (s *directorySource) Tracks() Tracks {
	return Tracks{Video: true, Audio: len(s.spectra) > 0}
}

func (s *directorySource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

func decodeFrame(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer file.Close()

	frame, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return frame, nil
}
