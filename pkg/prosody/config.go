package prosody

import "fmt"

// Config holds the tunable parameters of the voice pipeline.
type Config struct {
	// SampleRate of the incoming audio, used for session durations only.
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" json:"sample_rate"`

	// BufferSize is the number of samples per analyzed buffer when audio
	// arrives as a continuous stream (WAV files, RTP).
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" json:"buffer_size"`

	// QueueSize is the number of buffers that may wait between capture
	// and accumulation.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size" json:"queue_size"`

	// ZeroCrossingScale and IntensityGain normalize the features to [0, 1].
	ZeroCrossingScale float64 `yaml:"zero_crossing_scale" mapstructure:"zero_crossing_scale" json:"zero_crossing_scale"`
	IntensityGain     float64 `yaml:"intensity_gain" mapstructure:"intensity_gain" json:"intensity_gain"`
}

// DefaultConfig returns the reference device settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		BufferSize:        ReferenceBufferSize,
		QueueSize:         32,
		ZeroCrossingScale: DefaultZeroCrossingScale,
		IntensityGain:     DefaultIntensityGain,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BufferSize < 2 {
		return fmt.Errorf("buffer_size must be at least 2, got %d", c.BufferSize)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.ZeroCrossingScale <= 0 || c.IntensityGain <= 0 {
		return fmt.Errorf("feature normalization must be positive")
	}
	return nil
}

// Analyzer returns a FrameAnalyzer using this config's normalization.
func (c Config) Analyzer() FrameAnalyzer {
	return NewFrameAnalyzerWith(c.ZeroCrossingScale, c.IntensityGain)
}
