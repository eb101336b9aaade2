package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
)

// maxPacketSize covers a full Ethernet MTU.
const maxPacketSize = 1500

// PayloadDecoder turns one RTP payload into interleaved PCM16 samples.
type PayloadDecoder interface {
	Decode(payload []byte) ([]int16, error)
	SampleRate() int
	Channels() int
}

// L16Decoder decodes RFC 3551 L16 payloads (big-endian PCM16).
type L16Decoder struct {
	Rate  int
	Chans int
}

// Decode converts network-order samples.
func (d L16Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("l16 payload has odd length %d", len(payload))
	}
	return BigEndianToSamples(payload), nil
}

// SampleRate returns the configured rate.
func (d L16Decoder) SampleRate() int { return d.Rate }

// Channels returns the configured channel count.
func (d L16Decoder) Channels() int { return d.Chans }

// DecoderFactory builds a payload decoder for a config.
type DecoderFactory func(cfg Config) (PayloadDecoder, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]DecoderFactory{
		"l16": func(cfg Config) (PayloadDecoder, error) {
			return L16Decoder{Rate: cfg.SampleRate, Chans: cfg.Channels}, nil
		},
	}
)

// ErrUnknownCodec is returned for codecs with no registered decoder.
var ErrUnknownCodec = errors.New("audioio: unknown rtp codec")

// RegisterDecoder makes a payload codec available to the RTP backend.
// Codec packages call it from init.
func RegisterDecoder(codec string, f DecoderFactory) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[codec] = f
}

// NewDecoder returns a decoder for cfg.Codec.
func NewDecoder(cfg Config) (PayloadDecoder, error) {
	decodersMu.RLock()
	f, ok := decoders[cfg.Codec]
	decodersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, cfg.Codec)
	}
	return f(cfg)
}

// RTPSource receives RTP packets over UDP, decodes their payloads and
// re-buffers the audio into fixed-size chunks.
type RTPSource struct {
	cfg     Config
	decoder PayloadDecoder
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	conn     net.PacketConn
	streamCh chan AudioChunk
	stopCh   chan struct{}

	packets     atomic.Int64
	lost        atomic.Int64
	decodeErrs  atomic.Int64
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	dropped     atomic.Int64
}

// NewRTPSource creates a source that listens on cfg.Addr.
func NewRTPSource(cfg Config, dec PayloadDecoder, logger *slog.Logger) *RTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RTPSource{
		cfg:      cfg,
		decoder:  dec,
		logger:   logger,
		streamCh: make(chan AudioChunk),
	}
}

// Start binds the UDP socket and begins receiving.
func (s *RTPSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	conn, err := net.ListenPacket("udp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	s.conn = conn
	s.running = true
	s.streamCh = make(chan AudioChunk, 16)
	s.stopCh = make(chan struct{})

	go s.receive(ctx, conn, s.streamCh)
	go func(stop chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}(s.stopCh)

	s.logger.Info("rtp source listening",
		"addr", conn.LocalAddr().String(),
		"codec", s.cfg.Codec,
		"sample_rate", s.decoder.SampleRate(),
	)
	return nil
}

// receive is the only sender on out and closes it when the socket closes.
func (s *RTPSource) receive(ctx context.Context, conn net.PacketConn, out chan AudioChunk) {
	defer close(out)

	chans := max(1, s.decoder.Channels())
	size := s.cfg.BufferSamples * chans
	pending := make([]int16, 0, size*2)
	buf := make([]byte, maxPacketSize)

	var lastSeq uint16
	var haveSeq bool

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("rtp read failed", "error", err)
			}
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.decodeErrs.Add(1)
			continue
		}
		s.packets.Add(1)

		if haveSeq {
			if gap := pkt.SequenceNumber - lastSeq; gap > 1 && gap < 0x8000 {
				s.lost.Add(int64(gap - 1))
			}
		}
		lastSeq, haveSeq = pkt.SequenceNumber, true

		if len(pkt.Payload) == 0 {
			continue
		}
		samples, err := s.decoder.Decode(pkt.Payload)
		if err != nil {
			s.decodeErrs.Add(1)
			s.logger.Debug("rtp payload decode failed", "seq", pkt.SequenceNumber, "error", err)
			continue
		}

		pending = append(pending, samples...)
		for len(pending) >= size {
			chunk := AudioChunk{
				Samples:    append([]int16(nil), pending[:size]...),
				SampleRate: s.decoder.SampleRate(),
				Channels:   chans,
			}
			pending = pending[size:]

			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			case <-ctx.Done():
				return
			default:
				s.dropped.Add(1)
			}
		}
		// keep the backing array from growing without bound
		if cap(pending) > size*8 {
			pending = append(make([]int16, 0, size*2), pending...)
		}
	}
}

// Stop closes the socket; the stream closes once the receiver exits.
func (s *RTPSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("rtp source stopped",
		"packets", s.packets.Load(),
		"lost", s.lost.Load(),
		"decode_errors", s.decodeErrs.Load(),
		"chunks", s.chunksRead.Load(),
	)
	return s.conn.Close()
}

// Read returns the next chunk.
func (s *RTPSource) Read(ctx context.Context) (AudioChunk, error) {
	return readChunk(ctx, s.Stream())
}

// Stream returns the chunk channel.
func (s *RTPSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Addr returns the bound UDP address, or nil before Start.
func (s *RTPSource) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Config returns the source configuration.
func (s *RTPSource) Config() Config {
	cfg := s.cfg
	cfg.SampleRate = s.decoder.SampleRate()
	cfg.Channels = s.decoder.Channels()
	return cfg
}

// Name returns "rtp".
func (s *RTPSource) Name() string {
	return string(BackendRTP)
}

// Close stops the source permanently.
func (s *RTPSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns receive statistics. Dropped counts chunks discarded because
// the consumer fell behind.
func (s *RTPSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Dropped:     s.dropped.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

// Lost returns the number of packets missing from the sequence.
func (s *RTPSource) Lost() int64 {
	return s.lost.Load()
}

var _ SourceWithStats = (*RTPSource)(nil)
