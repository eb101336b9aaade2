// Package prosody classifies the emotional tone of a recorded voice session.
//
// Every captured audio buffer is reduced to two scalars: a zero-crossing-rate
// pitch proxy and an RMS intensity proxy. The scalars accumulate for the whole
// session and are classified once, after capture has stopped, by ordered
// threshold rules over their mean, spread and range.
package prosody

import "math"

// Default feature normalization.
const (
	// DefaultZeroCrossingScale maps a zero-crossing rate of 0.5 to pitch 1.0.
	DefaultZeroCrossingScale = 0.5

	// DefaultIntensityGain maps an RMS of 0.5 to intensity 1.0.
	DefaultIntensityGain = 2.0

	// ReferenceBufferSize is the buffer size of the reference capture device.
	ReferenceBufferSize = 1024
)

// Features are the per-buffer prosodic scalars, both in [0, 1].
type Features struct {
	Pitch     float64 `json:"pitch"`
	Intensity float64 `json:"intensity"`
}

// FrameAnalyzer extracts Features from one audio buffer. It is pure and
// safe for concurrent use.
type FrameAnalyzer struct {
	zcrScale float64
	gain     float64
}

// NewFrameAnalyzer creates an analyzer with the default normalization.
func NewFrameAnalyzer() FrameAnalyzer {
	return FrameAnalyzer{zcrScale: DefaultZeroCrossingScale, gain: DefaultIntensityGain}
}

// NewFrameAnalyzerWith creates an analyzer with custom normalization.
// Non-positive values fall back to the defaults.
func NewFrameAnalyzerWith(zcrScale, gain float64) FrameAnalyzer {
	a := NewFrameAnalyzer()
	if zcrScale > 0 {
		a.zcrScale = zcrScale
	}
	if gain > 0 {
		a.gain = gain
	}
	return a
}

// Analyze computes pitch and intensity for a mono buffer of samples in [-1, 1].
// Buffers shorter than two samples yield zero features.
func (a FrameAnalyzer) Analyze(samples []float64) Features {
	if len(samples) < 2 {
		return Features{}
	}
	zcr := float64(ZeroCrossings(samples)) / float64(len(samples))
	return Features{
		Pitch:     clamp01(zcr / a.zcrScale),
		Intensity: clamp01(RMS(samples) * a.gain),
	}
}

// AnalyzePCM16 scales int16 samples to [-1, 1) and analyzes them.
func (a FrameAnalyzer) AnalyzePCM16(samples []int16) Features {
	return a.Analyze(PCM16ToFloat(samples))
}

// ZeroCrossings counts adjacent sample pairs of strictly opposite sign.
func ZeroCrossings(samples []float64) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] > 0 && samples[i] < 0) || (samples[i-1] < 0 && samples[i] > 0) {
			n++
		}
	}
	return n
}

// RMS returns the root-mean-square of the samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PCM16ToFloat converts int16 PCM to float samples in [-1, 1).
func PCM16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
