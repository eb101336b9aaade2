// Package face turns per-frame facial blend shapes into a stable emotion label.
//
// Each frame is scored against seven emotions with fixed linear weights, the
// scores are discounted when the head is turned away from the camera, and a
// recency-weighted history smooths the per-frame arg-max into a label and a
// confidence.
//
// An Analyzer is driven by exactly one face tracker and is not safe for
// concurrent use.
package face

import "fmt"

// Emotion is one of the seven facial emotion labels.
type Emotion int

const (
	Happy Emotion = iota
	Angry
	Sad
	Surprised
	Disgusted
	Fearful
	Neutral
)

// NumEmotions is the number of emotion labels.
const NumEmotions = 7

// Emotions returns all labels in enumeration order. Ties are always resolved
// in this order.
func Emotions() [NumEmotions]Emotion {
	return [NumEmotions]Emotion{Happy, Angry, Sad, Surprised, Disgusted, Fearful, Neutral}
}

// String returns the display name of the emotion.
func (e Emotion) String() string {
	switch e {
	case Happy:
		return "Happy"
	case Angry:
		return "Angry"
	case Sad:
		return "Sad"
	case Surprised:
		return "Surprised"
	case Disgusted:
		return "Disgusted"
	case Fearful:
		return "Fearful"
	case Neutral:
		return "Neutral"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the emotion by name.
func (e Emotion) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an emotion name as written by MarshalText.
func (e *Emotion) UnmarshalText(text []byte) error {
	v, ok := ParseEmotion(string(text))
	if !ok {
		return fmt.Errorf("face: unknown emotion %q", text)
	}
	*e = v
	return nil
}

// ParseEmotion looks up an emotion by its display name.
func ParseEmotion(name string) (Emotion, bool) {
	for _, e := range Emotions() {
		if e.String() == name {
			return e, true
		}
	}
	return Neutral, false
}

// BlendShape is the name of a facial muscle activation as delivered by the
// face tracker (ARKit naming).
type BlendShape string

const (
	MouthSmileLeft   BlendShape = "mouthSmileLeft"
	MouthSmileRight  BlendShape = "mouthSmileRight"
	MouthFrownLeft   BlendShape = "mouthFrownLeft"
	MouthFrownRight  BlendShape = "mouthFrownRight"
	MouthPressLeft   BlendShape = "mouthPressLeft"
	MouthPressRight  BlendShape = "mouthPressRight"
	JawOpen          BlendShape = "jawOpen"
	BrowInnerUp      BlendShape = "browInnerUp"
	BrowOuterUpLeft  BlendShape = "browOuterUpLeft"
	BrowOuterUpRight BlendShape = "browOuterUpRight"
	BrowDownLeft     BlendShape = "browDownLeft"
	BrowDownRight    BlendShape = "browDownRight"
	EyeSquintLeft    BlendShape = "eyeSquintLeft"
	EyeSquintRight   BlendShape = "eyeSquintRight"
	EyeBlinkLeft     BlendShape = "eyeBlinkLeft"
	EyeBlinkRight    BlendShape = "eyeBlinkRight"
	EyeWideLeft      BlendShape = "eyeWideLeft"
	EyeWideRight     BlendShape = "eyeWideRight"
	CheekPuff        BlendShape = "cheekPuff"
	NoseSneerLeft    BlendShape = "noseSneerLeft"
	NoseSneerRight   BlendShape = "noseSneerRight"
	MouthPucker      BlendShape = "mouthPucker"
	MouthFunnel      BlendShape = "mouthFunnel"
)

// BlendShapes returns the 23 keys the scorer reads.
func BlendShapes() []BlendShape {
	return []BlendShape{
		MouthSmileLeft, MouthSmileRight,
		MouthFrownLeft, MouthFrownRight,
		MouthPressLeft, MouthPressRight,
		JawOpen, BrowInnerUp,
		BrowOuterUpLeft, BrowOuterUpRight,
		BrowDownLeft, BrowDownRight,
		EyeSquintLeft, EyeSquintRight,
		EyeBlinkLeft, EyeBlinkRight,
		EyeWideLeft, EyeWideRight,
		CheekPuff,
		NoseSneerLeft, NoseSneerRight,
		MouthPucker, MouthFunnel,
	}
}

// Frame is one tracked face as delivered by the face tracker.
type Frame struct {
	// BlendShapes maps activation names to values in [0, 1].
	// Missing keys read as 0; unknown keys are ignored.
	BlendShapes map[BlendShape]float64 `json:"blend_shapes"`

	// Transform is the head pose as a row-major 4x4 homogeneous matrix.
	// Format: [[r00,r01,r02,tx], [r10,r11,r12,ty], [r20,r21,r22,tz], [0,0,0,1]]
	Transform [4][4]float64 `json:"transform"`

	// LookAt is the gaze point in face space. Carried through, not scored.
	LookAt [3]float64 `json:"look_at"`
}

// Identity returns the identity head transform.
func Identity() [4][4]float64 {
	return [4][4]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Value returns the activation for key, or 0 when absent.
func (f Frame) Value(key BlendShape) float64 {
	if f.BlendShapes == nil {
		return 0
	}
	return f.BlendShapes[key]
}

// Score is the value of one emotion for one frame.
type Score struct {
	Emotion Emotion `json:"emotion"`
	Value   float64 `json:"score"`
}

// Reading is the smoothed output reported after every frame.
type Reading struct {
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
}
