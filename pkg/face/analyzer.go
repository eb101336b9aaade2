package face

// Analyzer runs the full facial pipeline for one tracked face.
type Analyzer struct {
	scorer   *Scorer
	smoother *Smoother
	frames   uint64
}

// NewAnalyzer creates an analyzer with the given configuration.
// An invalid config falls back to DefaultConfig.
func NewAnalyzer(cfg Config) *Analyzer {
	if err := cfg.Validate(); err != nil {
		cfg = DefaultConfig()
	}
	return &Analyzer{
		scorer:   NewScorer(NewAttenuator(cfg)),
		smoother: NewSmoother(cfg.HistorySize),
	}
}

// Process scores a frame, feeds the smoother and returns the smoothed reading.
func (a *Analyzer) Process(f Frame) Reading {
	a.frames++
	return a.smoother.Update(a.scorer.Score(f))
}

// Result is everything computed for one frame.
type Result struct {
	Reading Reading
	Scores  [NumEmotions]Score
	Pose    Pose
}

// Analyze is Process that also returns the frame's own scores and head pose.
func (a *Analyzer) Analyze(f Frame) Result {
	pose := PoseFromTransform(f.Transform)
	scores := a.scorer.ScorePose(f, pose)
	a.frames++
	return Result{
		Reading: a.smoother.Update(scores),
		Scores:  scores,
		Pose:    pose,
	}
}

// Scores returns the attenuated scores of a frame without touching history.
func (a *Analyzer) Scores(f Frame) [NumEmotions]Score {
	return a.scorer.Score(f)
}

// Current returns the latest smoothed reading.
func (a *Analyzer) Current() Reading {
	return a.smoother.Current()
}

// History returns the smoothing window, oldest first.
func (a *Analyzer) History() []Score {
	return a.smoother.History()
}

// Frames returns the number of frames processed.
func (a *Analyzer) Frames() uint64 {
	return a.frames
}
