package audioio

import (
	"context"
	"io"
)

// AudioChunk is one buffer of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of samples per channel.
func (c *AudioChunk) Frames() int {
	if c.Channels <= 0 {
		return len(c.Samples)
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the audio length of the chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}

// ToMono returns the chunk's samples averaged across channels.
func ToMono(c AudioChunk) []int16 {
	switch c.Channels {
	case 0, 1:
		return c.Samples
	case 2:
		return StereoToMono(c.Samples)
	}
	mono := make([]int16, len(c.Samples)/c.Channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < c.Channels; ch++ {
			sum += int32(c.Samples[i*c.Channels+ch])
		}
		mono[i] = int16(sum / int32(c.Channels))
	}
	return mono
}

// Source delivers captured audio buffers.
type Source interface {
	// Start begins delivery. Call Stream after Start.
	Start(ctx context.Context) error

	// Stop halts delivery and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next chunk, blocking if necessary.
	// Returns io.EOF once the source is stopped or exhausted.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns the channel chunks are delivered on.
	Stream() <-chan AudioChunk

	// Config returns the source configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// SourceStats contains delivery counters.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Dropped     int64  `json:"dropped"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// readChunk implements Source.Read on top of a stream channel.
func readChunk(ctx context.Context, stream <-chan AudioChunk) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-stream:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}
