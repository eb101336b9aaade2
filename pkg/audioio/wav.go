package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files that are not PCM WAV.
var ErrInvalidWAV = errors.New("audioio: invalid wav file")

// PCM holds a fully decoded recording.
type PCM struct {
	Samples    []int16 // interleaved
	SampleRate int
	Channels   int
}

// Mono returns the recording down-mixed to one channel.
func (p PCM) Mono() []int16 {
	return ToMono(AudioChunk{Samples: p.Samples, SampleRate: p.SampleRate, Channels: p.Channels})
}

// LoadWAV decodes a PCM WAV file into int16 samples.
func LoadWAV(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return PCM{}, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode %s: %w", path, err)
	}

	depth := int(d.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v, depth)
	}

	return PCM{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}, nil
}

func toInt16(v, depth int) int16 {
	switch depth {
	case 8:
		return int16((v - 128) << 8) // 8-bit WAV is unsigned
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// WAVSource replays a WAV file as a stream of chunks.
type WAVSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
}

// NewWAVSource creates a source for cfg.Path. The file is read on Start.
func NewWAVSource(cfg Config, logger *slog.Logger) *WAVSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAVSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk),
		stopCh:   make(chan struct{}),
	}
}

// Start decodes the file and begins delivering chunks. The stream closes
// at end of file.
func (s *WAVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	pcm, err := LoadWAV(s.cfg.Path)
	if err != nil {
		return err
	}
	s.cfg.SampleRate = pcm.SampleRate
	s.cfg.Channels = pcm.Channels

	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 4)

	go s.replay(ctx, pcm, s.streamCh, s.stopCh)

	s.logger.Info("wav source started",
		"path", s.cfg.Path,
		"sample_rate", pcm.SampleRate,
		"channels", pcm.Channels,
		"seconds", float64(len(pcm.Samples))/float64(pcm.SampleRate*pcm.Channels),
	)
	return nil
}

func (s *WAVSource) replay(ctx context.Context, pcm PCM, out chan AudioChunk, stop chan struct{}) {
	defer close(out)
	defer s.Stop()

	var tick <-chan time.Time
	if s.cfg.Realtime {
		ticker := time.NewTicker(s.cfg.BufferDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for _, part := range Split(pcm.Samples, s.cfg.BufferSamples*pcm.Channels) {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-tick:
			}
		}

		chunk := AudioChunk{Samples: part, SampleRate: pcm.SampleRate, Channels: pcm.Channels}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(part)))
		}
	}
}

// Stop halts replay.
func (s *WAVSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

// Read returns the next chunk or io.EOF at end of file.
func (s *WAVSource) Read(ctx context.Context) (AudioChunk, error) {
	return readChunk(ctx, s.Stream())
}

// Stream returns the chunk channel.
func (s *WAVSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the configuration, with the file's rate and channels once started.
func (s *WAVSource) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Name returns "wav".
func (s *WAVSource) Name() string {
	return string(BackendWAV)
}

// Close stops the source permanently.
func (s *WAVSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns replay statistics.
func (s *WAVSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

var _ SourceWithStats = (*WAVSource)(nil)
