package protocol

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/teslashibe/go-affect/pkg/audioio"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/prosody"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFaceFrameMessage creates a blendshapes message from a tracked frame
func NewFaceFrameMessage(f face.Frame, frameID uint64) (*Message, error) {
	shapes := make(map[string]float64, len(f.BlendShapes))
	for k, v := range f.BlendShapes {
		shapes[string(k)] = v
	}
	return NewMessage(TypeBlendShapes, FaceFrameData{
		BlendShapes: shapes,
		Transform:   f.Transform,
		LookAt:      f.LookAt,
		FrameID:     frameID,
	})
}

// NewMicMessage creates a microphone message from mono PCM16 samples
func NewMicMessage(samples []int16, sampleRate int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     FormatPCM16,
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
	})
}

// NewFloatMicMessage creates a microphone message from mono float samples
func NewFloatMicMessage(samples []float64, sampleRate int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     FormatFloat,
		SampleRate: sampleRate,
		Channels:   1,
		Samples:    samples,
	})
}

// NewVoiceStartMessage creates a voice_start message
func NewVoiceStartMessage(sampleRate int) (*Message, error) {
	return NewMessage(TypeVoiceStart, VoiceStartData{SampleRate: sampleRate})
}

// NewVoiceStopMessage creates a voice_stop message
func NewVoiceStopMessage() (*Message, error) {
	return NewMessage(TypeVoiceStop, nil)
}

// NewVoiceResetMessage creates a voice_reset message
func NewVoiceResetMessage() (*Message, error) {
	return NewMessage(TypeVoiceReset, nil)
}

// NewFaceReadingMessage creates a face_reading message
func NewFaceReadingMessage(sensorID string, frameID uint64, r face.Reading, scores [face.NumEmotions]face.Score, pose face.Pose) (*Message, error) {
	return NewMessage(TypeFaceReading, FaceReadingData{
		SensorID:   sensorID,
		FrameID:    frameID,
		Emotion:    r.Emotion,
		Confidence: r.Confidence,
		Scores:     scores[:],
		Pose:       pose,
	})
}

// NewVoiceResultMessage creates a voice_result message
func NewVoiceResultMessage(sensorID string, sess prosody.Session, res prosody.Result) (*Message, error) {
	return NewMessage(TypeVoiceResult, VoiceResultData{
		SensorID:  sensorID,
		SessionID: sess.ID,
		Label:     res.Label,
		Stats:     res.Stats,
		Seconds:   sess.Audio.Seconds(),
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string, offending MessageType) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		Code:    code,
		Message: message,
		Type:    offending,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	ts := time.Now().UnixMilli()
	return NewMessageAt(TypePing, PingData{ID: id, Timestamp: ts}, ts)
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// NewMessageAt creates a message with an explicit timestamp
func NewMessageAt(msgType MessageType, data interface{}, ts int64) (*Message, error) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = ts
	return msg, nil
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFaceFrameData extracts a face frame from a message
func (m *Message) GetFaceFrameData() (*FaceFrameData, error) {
	var data FaceFrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Frame converts the payload to a face.Frame
func (d *FaceFrameData) Frame() face.Frame {
	shapes := make(map[face.BlendShape]float64, len(d.BlendShapes))
	for k, v := range d.BlendShapes {
		shapes[face.BlendShape(k)] = v
	}
	return face.Frame{
		BlendShapes: shapes,
		Transform:   d.Transform,
		LookAt:      d.LookAt,
	}
}

// GetMicData extracts mic data from a message
func (m *Message) GetMicData() (*MicData, error) {
	var data MicData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeMicData decodes the base64 audio data
func (mic *MicData) DecodeMicData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// Mono returns the buffer as mono samples in [-1, 1], down-mixing when
// the payload carries more than one channel.
func (mic *MicData) Mono() ([]float64, error) {
	channels := max(1, mic.Channels)

	switch mic.Format {
	case FormatPCM16, "":
		raw, err := mic.DecodeMicData()
		if err != nil {
			return nil, fmt.Errorf("decode mic data: %w", err)
		}
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("pcm16 payload has odd length %d", len(raw))
		}
		mono := audioio.ToMono(audioio.AudioChunk{
			Samples:    audioio.BytesToSamples(raw),
			SampleRate: mic.SampleRate,
			Channels:   channels,
		})
		return prosody.PCM16ToFloat(mono), nil

	case FormatFloat:
		if channels == 1 {
			return mic.Samples, nil
		}
		mono := make([]float64, len(mic.Samples)/channels)
		for i := range mono {
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += mic.Samples[i*channels+ch]
			}
			mono[i] = sum / float64(channels)
		}
		return mono, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mic.Format)
	}
}

// GetVoiceStartData extracts voice_start options from a message
func (m *Message) GetVoiceStartData() (*VoiceStartData, error) {
	var data VoiceStartData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFaceReadingData extracts a face reading from a message
func (m *Message) GetFaceReadingData() (*FaceReadingData, error) {
	var data FaceReadingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetVoiceResultData extracts a voice result from a message
func (m *Message) GetVoiceResultData() (*VoiceResultData, error) {
	var data VoiceResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error details from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
