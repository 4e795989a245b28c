// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package heuristic

import (
	"image"
	"image/color"
)

// Default skin-ratio bounds. Below DefaultMinSkinRatio nobody is in
// frame; above DefaultMaxSkinRatio more than one person likely is.
const (
	DefaultMinSkinRatio = 0.02
	DefaultMaxSkinRatio = 0.35
)

// FaceStatus is the outcome of one face judgment.
type FaceStatus int

const (
	// FaceUnknown means no judgment was possible (no frame yet, or a
	// degenerate frame).
	FaceUnknown FaceStatus = iota
	FaceAbsent
	FacePresent
	FaceMultiple
)

// String returns the status line shown to the candidate.
func (s FaceStatus) String() string {
	switch s {
	case FaceAbsent:
		return "No face detected"
	case FacePresent:
		return "Face detected"
	case FaceMultiple:
		return "Multiple faces detected"
	}
	return "Initializing..."
}

// FaceReading is a detector's verdict on one frame. Score is
// detector-specific evidence for reviewers; for SkinToneDetector it is
// the skin-pixel ratio.
type FaceReading struct {
	Status FaceStatus
	Score  float64
}

// FaceDetector judges face presence in a frame.
type FaceDetector interface {
	DetectFaces(frame image.Image) FaceReading
}

// SkinToneDetector is the default FaceDetector. Zero-valued bounds
// fall back to the defaults.
type SkinToneDetector struct {
	MinRatio float64
	MaxRatio float64
}

// DetectFaces classifies the frame by its skin-pixel ratio.
func (d SkinToneDetector) DetectFaces(frame image.Image) FaceReading {
	ratio, ok := SkinRatio(frame)
	if !ok {
		return FaceReading{Status: FaceUnknown}
	}

	minRatio, maxRatio := d.MinRatio, d.MaxRatio
	if minRatio == 0 {
		minRatio = DefaultMinSkinRatio
	}
	if maxRatio == 0 {
		maxRatio = DefaultMaxSkinRatio
	}

	switch {
	case ratio < minRatio:
		return FaceReading{Status: FaceAbsent, Score: ratio}
	case ratio > maxRatio:
		return FaceReading{Status: FaceMultiple, Score: ratio}
	}
	return FaceReading{Status: FacePresent, Score: ratio}
}

// SkinRatio returns the fraction of the frame's pixels that match the
// skin-tone rule. Reports false for a nil or zero-size frame.
func SkinRatio(frame image.Image) (float64, bool) {
	if frame == nil {
		return 0, false
	}
	bounds := frame.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if bounds.Empty() || total <= 0 {
		return 0, false
	}

	matching := 0
	switch typed := frame.(type) {
	case *image.RGBA:
		matching = countSkinPix(typed.Pix, typed.Stride, bounds.Dx(), bounds.Dy())
	case *image.NRGBA:
		matching = countSkinPix(typed.Pix, typed.Stride, bounds.Dx(), bounds.Dy())
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				pixel := color.NRGBAModel.Convert(frame.At(x, y)).(color.NRGBA)
				if isSkin(int(pixel.R), int(pixel.G), int(pixel.B)) {
					matching++
				}
			}
		}
	}
	return float64(matching) / float64(total), true
}

// countSkinPix scans a 4-bytes-per-pixel buffer whose first byte is
// the frame's top-left pixel.
func countSkinPix(pix []uint8, stride, width, height int) int {
	matching := 0
	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+width*4]
		for i := 0; i < len(row); i += 4 {
			if isSkin(int(row[i]), int(row[i+1]), int(row[i+2])) {
				matching++
			}
		}
	}
	return matching
}

// isSkin is the skin-tone rule on 8-bit channels. The thresholds are
// fixed so findings stay comparable across releases.
func isSkin(r, g, b int) bool {
	return r > 95 && g > 40 && b > 20 &&
		r > g && r > b &&
		abs(r-g) > 15 &&
		r-b > 15
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
