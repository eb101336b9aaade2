package prosody

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 {
		t.Errorf("Expected mean 5, got %v", s.Mean)
	}
	if s.Variation != 2 {
		t.Errorf("Expected population stdev 2, got %v", s.Variation)
	}
	if s.Min != 2 || s.Max != 9 || s.Range != 7 {
		t.Errorf("Expected min 2 max 9 range 7, got %+v", s)
	}

	if (Summarize(nil) != Summary{}) {
		t.Error("Expected zero summary for empty input")
	}
}

func TestFeatureSeries(t *testing.T) {
	if NewFeatureSeries([]float64{1}, nil) != nil {
		t.Error("Expected nil for mismatched lengths")
	}

	var s FeatureSeries
	s.Append(Features{Pitch: 0.1, Intensity: 0.2})
	s.Append(Features{Pitch: 0.3, Intensity: 0.4})
	if s.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", s.Len())
	}
	if s.Pitch[1] != 0.3 || s.Intensity[1] != 0.4 {
		t.Errorf("Expected aligned append, got %+v", s)
	}

	s.Reset()
	if s.Len() != 0 || len(s.Intensity) != 0 {
		t.Errorf("Expected empty series after Reset, got %+v", s)
	}

	var nilSeries *FeatureSeries
	if nilSeries.Len() != 0 {
		t.Error("Expected nil series to have length 0")
	}
}

func TestClassifyRules(t *testing.T) {
	tests := []struct {
		name      string
		pitch     []float64
		intensity []float64
		want      Label
	}{
		{
			name:      "excited",
			pitch:     []float64{0.9, 0.9, 0.2, 0.9},
			intensity: []float64{0.65, 0.7, 0.6, 0.75},
			want:      Excited,
		},
		{
			name:      "happy",
			pitch:     []float64{0.9, 0.9, 0.2, 0.9},
			intensity: []float64{0.5, 0.5, 0.5, 0.5},
			want:      Happy,
		},
		{
			name:      "angry",
			pitch:     []float64{0.7, 0.7, 0.7},
			intensity: []float64{0.8, 0.8, 0.8},
			want:      Angry,
		},
		{
			name:      "sad",
			pitch:     []float64{0.2, 0.2},
			intensity: []float64{0.2, 0.2},
			want:      Sad,
		},
		{
			name:      "calm",
			pitch:     []float64{0.5, 0.5},
			intensity: []float64{0.45, 0.45},
			want:      Calm,
		},
		{
			name:      "neutral fallback",
			pitch:     []float64{0.5, 0.5},
			intensity: []float64{0.55, 0.55},
			want:      Neutral,
		},
		{
			name:      "calm bounds are exclusive",
			pitch:     []float64{0.3, 0.3},
			intensity: []float64{0.45, 0.45},
			want:      Neutral,
		},
		{
			name:      "single buffer",
			pitch:     []float64{0.1},
			intensity: []float64{0.1},
			want:      Sad,
		},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := c.Classify(NewFeatureSeries(tt.pitch, tt.intensity))
			if !ok {
				t.Fatal("Expected a classification")
			}
			if res.Label != tt.want {
				t.Errorf("Expected %s, got %s (stats %+v)", tt.want, res.Label, res.Stats)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	st := Stats{
		Pitch:     Summary{Mean: 0.8, Variation: 0.3, Range: 0.7},
		Intensity: Summary{Mean: 0.7},
	}
	// both the Excited and Happy conditions hold
	if got := NewClassifier().Decide(st); got != Excited {
		t.Errorf("Expected Excited, got %s", got)
	}
}

func TestClassifyPopulationStdev(t *testing.T) {
	// population stdev of this series is 0.2408, short of Excited's 0.25
	s := NewFeatureSeries(
		[]float64{0.8, 0.85, 0.3, 0.9},
		[]float64{0.65, 0.7, 0.6, 0.75},
	)
	res, ok := NewClassifier().Classify(s)
	if !ok {
		t.Fatal("Expected a classification")
	}
	if math.Abs(res.Stats.Pitch.Mean-0.7125) > 1e-9 {
		t.Errorf("Expected mean pitch 0.7125, got %v", res.Stats.Pitch.Mean)
	}
	if math.Abs(res.Stats.Pitch.Variation-math.Sqrt(0.231875/4)) > 1e-9 {
		t.Errorf("Expected population stdev, got %v", res.Stats.Pitch.Variation)
	}
	if math.Abs(res.Stats.Pitch.Range-0.6) > 1e-9 {
		t.Errorf("Expected range 0.6, got %v", res.Stats.Pitch.Range)
	}
	if res.Label != Happy {
		t.Errorf("Expected Happy, got %s", res.Label)
	}
	if res.Stats.Buffers != 4 {
		t.Errorf("Expected 4 buffers, got %d", res.Stats.Buffers)
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := NewClassifier()
	if _, ok := c.Classify(nil); ok {
		t.Error("Expected no classification for nil series")
	}
	if _, ok := c.Classify(&FeatureSeries{}); ok {
		t.Error("Expected no classification for empty series")
	}
	if _, ok := c.Classify(&FeatureSeries{Pitch: []float64{0.5}}); ok {
		t.Error("Expected no classification when intensity is empty")
	}
}
