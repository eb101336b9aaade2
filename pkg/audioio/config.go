// Package audioio delivers raw audio buffers to the voice pipeline.
//
// Capture itself is outside this module; the backends here adapt the ways
// audio reaches it:
//   - Mock - synthetic sine or silence for tests and demos
//   - WAV - a recorded file, replayed in fixed-size buffers
//   - RTP - a UDP stream of RTP packets (L16 or Opus payloads)
package audioio

import (
	"fmt"
	"time"
)

// Backend selects where audio comes from.
type Backend string

const (
	// BackendMock generates synthetic audio.
	BackendMock Backend = "mock"
	// BackendWAV replays a WAV file.
	BackendWAV Backend = "wav"
	// BackendRTP receives an RTP stream over UDP.
	BackendRTP Backend = "rtp"
)

// Config holds audio input configuration.
type Config struct {
	// Backend specifies which source to use.
	// Default: "mock"
	Backend Backend `yaml:"backend" mapstructure:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" mapstructure:"channels" json:"channels"`

	// BufferSamples is the number of samples per channel in each chunk.
	// Default: 1024
	BufferSamples int `yaml:"buffer_samples" mapstructure:"buffer_samples" json:"buffer_samples"`

	// Realtime paces file and mock sources at the audio rate instead of
	// delivering as fast as the consumer reads.
	Realtime bool `yaml:"realtime" mapstructure:"realtime" json:"realtime"`

	// Path is the WAV file to replay (BackendWAV).
	Path string `yaml:"path" mapstructure:"path" json:"path"`

	// Addr is the UDP listen address (BackendRTP), e.g. ":5004".
	Addr string `yaml:"addr" mapstructure:"addr" json:"addr"`

	// Codec is the RTP payload encoding (BackendRTP): "l16" or "opus".
	Codec string `yaml:"codec" mapstructure:"codec" json:"codec"`
}

// DefaultConfig returns a Config for mono 16 kHz audio in 1024-sample buffers.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMock,
		SampleRate:    16000,
		Channels:      1,
		BufferSamples: 1024,
		Realtime:      true,
		Addr:          ":5004",
		Codec:         "l16",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferSamples < 2 {
		return fmt.Errorf("buffer_samples must be at least 2, got %d", c.BufferSamples)
	}
	switch c.Backend {
	case BackendMock:
	case BackendWAV:
		if c.Path == "" {
			return fmt.Errorf("wav backend requires a path")
		}
	case BackendRTP:
		if c.Addr == "" {
			return fmt.Errorf("rtp backend requires an addr")
		}
	default:
		return fmt.Errorf("unsupported backend: %q", c.Backend)
	}
	return nil
}

// BufferDuration returns the audio time covered by one chunk.
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(float64(c.BufferSamples) / float64(c.SampleRate) * float64(time.Second))
}
