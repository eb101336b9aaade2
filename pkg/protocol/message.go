// Package protocol defines the WebSocket message types exchanged between
// sensors (face trackers, microphones) and the affect server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/prosody"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Sensor → Server messages
	TypeBlendShapes MessageType = "blendshapes" // One tracked face frame
	TypeVoiceStart  MessageType = "voice_start" // Begin a voice session
	TypeMic         MessageType = "mic"         // Microphone audio buffer
	TypeVoiceStop   MessageType = "voice_stop"  // End and classify the session
	TypeVoiceReset  MessageType = "voice_reset" // Discard the session

	// Server → Sensor messages
	TypeFaceReading MessageType = "face_reading" // Smoothed label after every frame
	TypeVoiceResult MessageType = "voice_result" // Classification of a stopped session
	TypeError       MessageType = "error"        // Request could not be handled

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Mic payload formats
const (
	FormatPCM16 = "pcm16" // base64 little-endian int16 in Data
	FormatFloat = "float" // samples in [-1, 1] in Samples
)

// ErrUnsupportedFormat is returned for mic payloads in an unknown format.
var ErrUnsupportedFormat = errors.New("protocol: unsupported audio format")

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Sensor → Server Message Types
// =============================================================================

// FaceFrameData contains one tracked face frame
type FaceFrameData struct {
	BlendShapes map[string]float64 `json:"blend_shapes"`
	Transform   [4][4]float64      `json:"transform"` // row-major, zero means identity
	LookAt      [3]float64         `json:"look_at,omitempty"`
	FrameID     uint64             `json:"frame_id,omitempty"`
}

// MicData contains one buffer of microphone audio
type MicData struct {
	Format     string    `json:"format"`            // "pcm16", "float"
	SampleRate int       `json:"sample_rate"`       // e.g., 16000
	Channels   int       `json:"channels"`          // 1 for mono
	Data       string    `json:"data,omitempty"`    // base64 encoded (pcm16)
	Samples    []float64 `json:"samples,omitempty"` // float
}

// VoiceStartData optionally describes the audio that will follow
type VoiceStartData struct {
	SampleRate int `json:"sample_rate,omitempty"`
}

// =============================================================================
// Server → Sensor Message Types
// =============================================================================

// FaceReadingData is the smoothed face result for one frame
type FaceReadingData struct {
	SensorID   string       `json:"sensor_id"`
	FrameID    uint64       `json:"frame_id,omitempty"`
	Emotion    face.Emotion `json:"emotion"`
	Confidence float64      `json:"confidence"`
	Scores     []face.Score `json:"scores"` // attenuated, enumeration order
	Pose       face.Pose    `json:"pose"`
}

// VoiceResultData is the classification of one voice session
type VoiceResultData struct {
	SensorID  string        `json:"sensor_id"`
	SessionID string        `json:"session_id"`
	Label     prosody.Label `json:"label"`
	Stats     prosody.Stats `json:"stats"`
	Seconds   float64       `json:"seconds"` // captured audio
}

// ErrorData reports a message the server could not handle
type ErrorData struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Type    MessageType `json:"type,omitempty"` // offending message type
}

// Error codes
const (
	CodeBadMessage  = "bad_message"
	CodeBadPayload  = "bad_payload"
	CodeUnknownType = "unknown_type"
	CodeVoiceState  = "voice_state"
)

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
