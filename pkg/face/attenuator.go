package face

import "math"

// Attenuator discounts scores for head poses the tracker handles poorly.
type Attenuator struct {
	cfg Config
}

// NewAttenuator creates an attenuator from the angle limits and penalties in cfg.
func NewAttenuator(cfg Config) Attenuator {
	return Attenuator{cfg: cfg}
}

// Penalty returns the total penalty fraction for a pose, capped at 1.
func (a Attenuator) Penalty(p Pose) float64 {
	var penalty float64
	if math.Abs(p.Pitch) > a.cfg.PitchLimit {
		penalty += a.cfg.PitchPenalty
	}
	if math.Abs(p.Yaw) > a.cfg.YawLimit {
		penalty += a.cfg.YawPenalty
	}
	if math.Abs(p.Roll) > a.cfg.RollLimit {
		penalty += a.cfg.RollPenalty
	}
	return math.Min(penalty, 1)
}

// Attenuate scales score by the remaining confidence for the pose.
func (a Attenuator) Attenuate(score float64, p Pose) float64 {
	return clamp01(score * (1 - a.Penalty(p)))
}
