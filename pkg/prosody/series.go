package prosody

import "math"

// FeatureSeries accumulates per-buffer features for one recording session.
// Pitch and Intensity are index-aligned and always the same length.
type FeatureSeries struct {
	Pitch     []float64 `json:"pitch"`
	Intensity []float64 `json:"intensity"`
}

// NewFeatureSeries creates a series from parallel slices. It returns nil
// when the lengths differ.
func NewFeatureSeries(pitch, intensity []float64) *FeatureSeries {
	if len(pitch) != len(intensity) {
		return nil
	}
	return &FeatureSeries{Pitch: pitch, Intensity: intensity}
}

// Append adds one buffer's features to both sequences.
func (s *FeatureSeries) Append(f Features) {
	s.Pitch = append(s.Pitch, f.Pitch)
	s.Intensity = append(s.Intensity, f.Intensity)
}

// Len returns the number of analyzed buffers.
func (s *FeatureSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Pitch)
}

// Reset empties the series, keeping capacity.
func (s *FeatureSeries) Reset() {
	s.Pitch = s.Pitch[:0]
	s.Intensity = s.Intensity[:0]
}

// Summary holds aggregate statistics of one sequence.
type Summary struct {
	Mean      float64 `json:"mean"`
	Variation float64 `json:"variation"` // population standard deviation
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Range     float64 `json:"range"`
}

// Summarize computes mean, population standard deviation and range.
// An empty input yields the zero Summary.
func Summarize(xs []float64) Summary {
	if len(xs) == 0 {
		return Summary{}
	}
	n := float64(len(xs))
	lo, hi := xs[0], xs[0]
	var sum float64
	for _, x := range xs {
		sum += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	mean := sum / n

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}

	return Summary{
		Mean:      mean,
		Variation: math.Sqrt(sq / n),
		Min:       lo,
		Max:       hi,
		Range:     hi - lo,
	}
}
