package prosody

// Label is a voice classification result.
type Label string

const (
	Excited Label = "Excited"
	Happy   Label = "Happy"
	Angry   Label = "Angry"
	Sad     Label = "Sad"
	Calm    Label = "Calm"
	Neutral Label = "Neutral"
)

// Stats are the session aggregates the rules are evaluated on.
// Intensity variation and range are reported but no rule reads them.
type Stats struct {
	Pitch     Summary `json:"pitch"`
	Intensity Summary `json:"intensity"`
	Buffers   int     `json:"buffers"`
}

// Result is the outcome of classifying one session.
type Result struct {
	Label Label `json:"label"`
	Stats Stats `json:"stats"`
}

type rule struct {
	label Label
	match func(Stats) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{Excited, func(s Stats) bool {
		return s.Intensity.Mean > 0.6 && s.Pitch.Variation > 0.25 && s.Pitch.Range > 0.3
	}},
	{Happy, func(s Stats) bool {
		return s.Pitch.Mean > 0.5 && s.Pitch.Variation > 0.2 && s.Intensity.Mean > 0.4
	}},
	{Angry, func(s Stats) bool {
		return s.Intensity.Mean > 0.7 && s.Pitch.Variation < 0.15 && s.Pitch.Mean > 0.6
	}},
	{Sad, func(s Stats) bool {
		return s.Intensity.Mean < 0.4 && s.Pitch.Variation < 0.1 && s.Pitch.Mean < 0.4
	}},
	{Calm, func(s Stats) bool {
		return s.Intensity.Mean < 0.5 && s.Pitch.Variation < 0.15 &&
			s.Pitch.Mean > 0.3 && s.Pitch.Mean < 0.6
	}},
}

// Classifier applies the ordered threshold rules to session statistics.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() Classifier {
	return Classifier{}
}

// ComputeStats aggregates a series.
func ComputeStats(s *FeatureSeries) Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Pitch:     Summarize(s.Pitch),
		Intensity: Summarize(s.Intensity),
		Buffers:   s.Len(),
	}
}

// Decide picks the label for precomputed statistics.
func (Classifier) Decide(st Stats) Label {
	for _, r := range rules {
		if r.match(st) {
			return r.label
		}
	}
	return Neutral
}

// Classify labels a finished session. It reports false, and no label, when
// either sequence is empty.
func (c Classifier) Classify(s *FeatureSeries) (Result, bool) {
	if s == nil || len(s.Pitch) == 0 || len(s.Intensity) == 0 {
		return Result{}, false
	}
	st := ComputeStats(s)
	return Result{Label: c.Decide(st), Stats: st}, true
}
