// Package acoustic derives voice features (pitch variability, volume
// stability, stress and tremor) from a PCM waveform.
package acoustic

import "math"

const (
	// pitchStdScale is the pitch standard deviation (Hz) that maps to a
	// stress component of 100.
	pitchStdScale = 50.0

	tremorMinSamples = 10
	tremorRatio      = 0.6

	neutralStress = 50.0
)

// VolumeStability is 100 minus the coefficient of variation of frame energy
// in percent, clamped to [0,100]. No energy frames yields 0.
func VolumeStability(energy []float64) float64 {
	if len(energy) == 0 {
		return 0
	}
	m := mean(energy)
	if m <= 0 {
		return 0
	}
	return clampPct(100 - stddev(energy)/m*100)
}

// StressIndicator blends normalized pitch and energy variation 60/40. Each
// term is clamped to [0,100] before blending. Without pitch or energy values
// the neutral 50 is returned.
func StressIndicator(pitch, energy []float64) float64 {
	if len(pitch) == 0 || len(energy) == 0 {
		return neutralStress
	}
	pitchScore := clampPct(stddev(pitch) / pitchStdScale * 100)
	energyScore := 0.0
	if m := mean(energy); m > 0 {
		energyScore = clampPct(stddev(energy) / m * 100)
	}
	return pitchScore*0.6 + energyScore*0.4
}

// DetectTremor reports rapid pitch oscillation: at least 10 pitch samples
// and more than 60% direction changes between consecutive differences.
func DetectTremor(pitch []float64) bool {
	if len(pitch) < tremorMinSamples {
		return false
	}
	diffs := make([]float64, len(pitch)-1)
	for i := 1; i < len(pitch); i++ {
		diffs[i-1] = pitch[i] - pitch[i-1]
	}
	changes := 0
	for i := 1; i < len(diffs); i++ {
		if (diffs[i] > 0) != (diffs[i-1] > 0) {
			changes++
		}
	}
	return float64(changes)/float64(len(diffs)) > tremorRatio
}

// PitchVariability is the standard deviation of the voiced pitch track.
func PitchVariability(pitch []float64) float64 { return stddev(pitch) }

func clampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
