package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_samples", cfg.BufferSamples,
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockSource(cfg, logger, opts...), nil
	case BackendWAV:
		return NewWAVSource(cfg, logger), nil
	case BackendRTP:
		dec, err := NewDecoder(cfg)
		if err != nil {
			return nil, err
		}
		return NewRTPSource(cfg, dec, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the backends this build supports.
func AvailableBackends() []Backend {
	return []Backend{BackendMock, BackendWAV, BackendRTP}
}

// AvailableCodecs returns the registered RTP payload codecs.
func AvailableCodecs() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()
	out := make([]string, 0, len(decoders))
	for name := range decoders {
		out = append(out, name)
	}
	return out
}
