// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package heuristic

import (
	"time"

	"github.com/codeshield/proctor/lib/media"
	"github.com/codeshield/proctor/lib/schema/integrity"
)

// MessageNoise accompanies noise_detected findings.
const MessageNoise = "Background noise detected."

// Classifier runs the face and noise judgments over one sample.
type Classifier struct {
	Faces FaceDetector
	Noise NoiseDetector
}

// NewClassifier returns a Classifier using the skin-tone and spectrum
// heuristics with the given bounds. Zero values select the defaults.
func NewClassifier(minSkinRatio, maxSkinRatio, noiseThreshold float64) *Classifier {
	return &Classifier{
		Faces: SkinToneDetector{MinRatio: minSkinRatio, MaxRatio: maxSkinRatio},
		Noise: SpectrumMeter{Threshold: noiseThreshold},
	}
}

// Result is everything one sampling tick produced.
type Result struct {
	// Face is FaceUnknown when the sample carried no usable frame.
	Face       FaceStatus
	NoiseLevel float64
	Findings   []integrity.Finding
}

// Classify judges the sample observed at the given time. A nil
// detector skips its judgment.
func (c *Classifier) Classify(sample media.Sample, at time.Time) Result {
	var result Result

	if c.Faces != nil && sample.Frame != nil {
		reading := c.Faces.DetectFaces(sample.Frame)
		result.Face = reading.Status

		var kind integrity.Kind
		var message string
		switch reading.Status {
		case FaceAbsent:
			kind, message = integrity.KindNoFace, integrity.MessageNoFace
		case FaceMultiple:
			kind, message = integrity.KindMultipleFaces, integrity.MessageMultipleFaces
		}
		if kind != "" {
			result.Findings = append(result.Findings, integrity.NewFinding(kind, message, at, map[string]any{
				"skin_ratio":   reading.Score,
				"frame_digest": media.FrameDigest(sample.Frame),
			}))
		}
	}

	if c.Noise != nil {
		level, noisy := c.Noise.MeasureNoise(sample.Spectrum)
		result.NoiseLevel = level
		if noisy {
			result.Findings = append(result.Findings, integrity.NewFinding(
				integrity.KindNoiseDetected, MessageNoise, at,
				map[string]any{"level": level},
			))
		}
	}

	return result
}
