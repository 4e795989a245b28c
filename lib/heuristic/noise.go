// Copyright 2026 The CodeShield Authors
// SPDX-License-Identifier: Apache-2.0

package heuristic

// DefaultNoiseThreshold is the mean spectrum magnitude, on the 0-255
// scale, above which a sample counts as noisy.
const DefaultNoiseThreshold = 40

// NoiseDetector judges ambient noise from a frequency snapshot.
type NoiseDetector interface {
	// MeasureNoise returns the measured level and whether it exceeds
	// the detector's threshold.
	MeasureNoise(spectrum []byte) (level float64, noisy bool)
}

// SpectrumMeter is the default NoiseDetector: the level is the mean
// bin magnitude. A zero Threshold falls back to the default.
type SpectrumMeter struct {
	Threshold float64
}

// MeasureNoise averages the spectrum. An empty spectrum is silent.
func (m SpectrumMeter) MeasureNoise(spectrum []byte) (float64, bool) {
	if len(spectrum) == 0 {
		return 0, false
	}
	threshold := m.Threshold
	if threshold == 0 {
		threshold = DefaultNoiseThreshold
	}

	sum := 0
	for _, magnitude := range spectrum {
		sum += int(magnitude)
	}
	level := float64(sum) / float64(len(spectrum))
	return level, level > threshold
}
