package face

// Features holds the blend-shape inputs after left/right averaging.
type Features struct {
	Smile       float64
	Frown       float64
	Mouth       float64 // mouthPress pair
	JawOpen     float64
	BrowInnerUp float64
	BrowOuterUp float64
	BrowDown    float64
	EyeSquint   float64
	EyeBlink    float64
	EyeWide     float64
	CheekPuff   float64
	NoseSneer   float64
	MouthPucker float64
	MouthFunnel float64
}

// ExtractFeatures reads and averages the blend shapes of a frame.
func ExtractFeatures(f Frame) Features {
	pair := func(l, r BlendShape) float64 {
		return (f.Value(l) + f.Value(r)) / 2
	}
	return Features{
		Smile:       pair(MouthSmileLeft, MouthSmileRight),
		Frown:       pair(MouthFrownLeft, MouthFrownRight),
		Mouth:       pair(MouthPressLeft, MouthPressRight),
		JawOpen:     f.Value(JawOpen),
		BrowInnerUp: f.Value(BrowInnerUp),
		BrowOuterUp: pair(BrowOuterUpLeft, BrowOuterUpRight),
		BrowDown:    pair(BrowDownLeft, BrowDownRight),
		EyeSquint:   pair(EyeSquintLeft, EyeSquintRight),
		EyeBlink:    pair(EyeBlinkLeft, EyeBlinkRight),
		EyeWide:     pair(EyeWideLeft, EyeWideRight),
		CheekPuff:   f.Value(CheekPuff),
		NoseSneer:   pair(NoseSneerLeft, NoseSneerRight),
		MouthPucker: f.Value(MouthPucker),
		MouthFunnel: f.Value(MouthFunnel),
	}
}

type scoreFunc func(Features) float64

// scoreFuncs is indexed by Emotion. Results are unclamped.
var scoreFuncs = [NumEmotions]scoreFunc{
	Happy: func(x Features) float64 {
		return 1.2*x.Smile - 0.2*x.EyeSquint - 0.1*x.JawOpen + 0.3*x.CheekPuff
	},
	Angry: func(x Features) float64 {
		return 1.2*x.Frown + 0.4*x.BrowInnerUp + 0.3*x.EyeSquint + 0.3*x.BrowDown
	},
	Sad: func(x Features) float64 {
		return 1.2*x.Frown - 0.2*x.BrowInnerUp - 0.3*x.Smile + 0.3*x.MouthPucker
	},
	Surprised: func(x Features) float64 {
		return 1.2*x.JawOpen + 0.4*x.BrowOuterUp - 0.1*x.EyeBlink + 0.3*x.EyeWide
	},
	Disgusted: func(x Features) float64 {
		return 1.2*x.EyeSquint + 0.4*x.NoseSneer - 0.3*x.Smile + 0.3*x.MouthFunnel
	},
	Fearful: func(x Features) float64 {
		return 1.2*x.BrowOuterUp + 0.3*x.JawOpen - 0.3*x.Smile + 0.3*x.EyeWide
	},
	Neutral: neutral,
}

// neutral is high only when every expressive input is near rest.
func neutral(x Features) float64 {
	m := max(x.Smile, x.Frown, x.JawOpen, x.BrowInnerUp, x.Mouth)
	base := 1 - m
	if m < 0.1 {
		return base
	}
	return base * 0.5
}

// RawScores returns the seven clamped scores before head-pose attenuation.
func RawScores(x Features) [NumEmotions]Score {
	var out [NumEmotions]Score
	for _, e := range Emotions() {
		out[e] = Score{Emotion: e, Value: clamp01(scoreFuncs[e](x))}
	}
	return out
}

// Scorer computes attenuated per-emotion scores for a frame.
type Scorer struct {
	attenuator Attenuator
}

// NewScorer creates a scorer that discounts scores with the given attenuator.
func NewScorer(a Attenuator) *Scorer {
	return &Scorer{attenuator: a}
}

// Score returns all seven emotions in enumeration order.
func (s *Scorer) Score(f Frame) [NumEmotions]Score {
	return s.ScorePose(f, PoseFromTransform(f.Transform))
}

// ScorePose scores a frame whose head pose has already been extracted.
func (s *Scorer) ScorePose(f Frame, pose Pose) [NumEmotions]Score {
	scores := RawScores(ExtractFeatures(f))
	for i := range scores {
		scores[i].Value = s.attenuator.Attenuate(scores[i].Value, pose)
	}
	return scores
}
