// Package opuscodec registers an Opus payload decoder for the RTP backend.
//
// Import it for its side effect:
//
//	import _ "github.com/teslashibe/go-affect/pkg/audioio/opuscodec"
//
// Decoding uses libopus through cgo.
package opuscodec

import (
	"fmt"

	"github.com/teslashibe/go-affect/pkg/audioio"
	"gopkg.in/hraban/opus.v2"
)

// Opus always runs at one of its native rates; 48 kHz is what WebRTC peers send.
const defaultRate = 48000

// maxFrameSamples is 120 ms at 48 kHz, the longest Opus frame.
const maxFrameSamples = 5760

func init() {
	audioio.RegisterDecoder("opus", func(cfg audioio.Config) (audioio.PayloadDecoder, error) {
		rate := cfg.SampleRate
		switch rate {
		case 8000, 12000, 16000, 24000, 48000:
		default:
			rate = defaultRate
		}
		return NewDecoder(rate, cfg.Channels)
	})
}

// Decoder decodes Opus packets into PCM16.
type Decoder struct {
	dec   *opus.Decoder
	rate  int
	chans int
	buf   []int16
}

// NewDecoder creates a decoder for the given output rate and channels.
func NewDecoder(rate, channels int) (*Decoder, error) {
	if channels <= 0 {
		channels = 1
	}
	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &Decoder{
		dec:   dec,
		rate:  rate,
		chans: channels,
		buf:   make([]int16, maxFrameSamples*channels),
	}, nil
}

// Decode decodes one packet. The returned slice is freshly allocated.
func (d *Decoder) Decode(payload []byte) ([]int16, error) {
	n, err := d.dec.Decode(payload, d.buf)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n*d.chans)
	copy(out, d.buf[:n*d.chans])
	return out, nil
}

// SampleRate returns the output rate.
func (d *Decoder) SampleRate() int { return d.rate }

// Channels returns the output channel count.
func (d *Decoder) Channels() int { return d.chans }
