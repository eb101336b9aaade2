package face

import "fmt"

// HistorySize is the default capacity of the smoothing window.
const HistorySize = 15

// Config holds the tunable parameters of the facial pipeline.
type Config struct {
	// HistorySize is the number of recent frames kept for smoothing.
	HistorySize int `yaml:"history_size" mapstructure:"history_size" json:"history_size"`

	// Angle limits in radians; beyond these a penalty applies.
	PitchLimit float64 `yaml:"pitch_limit" mapstructure:"pitch_limit" json:"pitch_limit"`
	YawLimit   float64 `yaml:"yaw_limit" mapstructure:"yaw_limit" json:"yaw_limit"`
	RollLimit  float64 `yaml:"roll_limit" mapstructure:"roll_limit" json:"roll_limit"`

	// Penalty fractions subtracted from the attenuation factor.
	PitchPenalty float64 `yaml:"pitch_penalty" mapstructure:"pitch_penalty" json:"pitch_penalty"`
	YawPenalty   float64 `yaml:"yaw_penalty" mapstructure:"yaw_penalty" json:"yaw_penalty"`
	RollPenalty  float64 `yaml:"roll_penalty" mapstructure:"roll_penalty" json:"roll_penalty"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		HistorySize: HistorySize,

		PitchLimit: 0.5, // ~29°
		YawLimit:   0.5,
		RollLimit:  0.5,

		PitchPenalty: 0.2,
		YawPenalty:   0.2,
		RollPenalty:  0.1, // roll barely hurts tracking
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.PitchLimit < 0 || c.YawLimit < 0 || c.RollLimit < 0 {
		return fmt.Errorf("angle limits must not be negative")
	}
	for name, p := range map[string]float64{
		"pitch_penalty": c.PitchPenalty,
		"yaw_penalty":   c.YawPenalty,
		"roll_penalty":  c.RollPenalty,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, p)
		}
	}
	return nil
}
