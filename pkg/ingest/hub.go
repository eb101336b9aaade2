// Package ingest accepts sensor connections over WebSocket and runs the
// face and voice pipelines for each of them.
//
// Every connection owns one face.Analyzer and one prosody.Recorder. Both are
// touched only from the connection's read loop, so a tracker streaming frames
// and a microphone streaming audio can share one socket without locking.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/prosody"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// ErrSensorNotConnected is returned when sending to an unknown sensor.
var ErrSensorNotConnected = errors.New("ingest: sensor not connected")

// Config holds per-connection pipeline settings.
type Config struct {
	Face  face.Config    `yaml:"face" mapstructure:"face" json:"face"`
	Voice prosody.Config `yaml:"voice" mapstructure:"voice" json:"voice"`

	// ReadLimit caps the size of one inbound message in bytes.
	ReadLimit int64 `yaml:"read_limit" mapstructure:"read_limit" json:"read_limit"`
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		Face:      face.DefaultConfig(),
		Voice:     prosody.DefaultConfig(),
		ReadLimit: 1 << 20,
	}
}

// Sensor is one connected face tracker and/or microphone.
type Sensor struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu       sync.Mutex
	lastSeen time.Time

	// owned by the read loop
	face  *face.Analyzer
	voice *prosody.Recorder
}

// Send sends a message to the sensor
func (s *Sensor) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// LastSeen returns when the sensor last sent a message.
func (s *Sensor) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Sensor) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Hub manages WebSocket connections from sensors
type Hub struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	sensors map[string]*Sensor

	// Callbacks
	onReading     func(sensorID string, reading *protocol.FaceReadingData)
	onVoiceResult func(sensorID string, result *protocol.VoiceResultData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	voiceSessions    atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a new sensor hub
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultConfig().ReadLimit
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		sensors: make(map[string]*Sensor),
	}
}

// OnReading sets the callback for smoothed face readings
func (h *Hub) OnReading(callback func(sensorID string, reading *protocol.FaceReadingData)) {
	h.mu.Lock()
	h.onReading = callback
	h.mu.Unlock()
}

// OnVoiceResult sets the callback for classified voice sessions
func (h *Hub) OnVoiceResult(callback func(sensorID string, result *protocol.VoiceResultData)) {
	h.mu.Lock()
	h.onVoiceResult = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/sensor", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sensor", websocket.New(h.handleSensor))
	app.Get("/ws/sensor/:id", websocket.New(h.handleSensor))
}

// handleSensor handles a sensor WebSocket connection
func (h *Hub) handleSensor(c *websocket.Conn) {
	sensorID := c.Params("id")
	if sensorID == "" {
		sensorID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	sensor := &Sensor{
		ID:        sensorID,
		Conn:      c,
		Connected: now,
		lastSeen:  now,
		face:      face.NewAnalyzer(h.cfg.Face),
		voice:     prosody.NewRecorder(h.cfg.Voice, h.logger.With("sensor", sensorID)),
	}

	h.mu.Lock()
	h.sensors[sensorID] = sensor
	count := len(h.sensors)
	h.mu.Unlock()

	h.logger.Info("sensor connected", "sensor", sensorID, "total", count)

	defer func() {
		sensor.voice.Reset()

		h.mu.Lock()
		// a reconnect under the same id may already have replaced us
		if h.sensors[sensorID] == sensor {
			delete(h.sensors, sensorID)
		}
		count := len(h.sensors)
		h.mu.Unlock()

		h.logger.Info("sensor disconnected", "sensor", sensorID, "total", count)
	}()

	c.SetReadLimit(h.cfg.ReadLimit)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("sensor read ended", "sensor", sensorID, "error", err)
			return
		}

		sensor.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(ctx, sensor, data)
	}
}

// handleMessage processes an incoming message from a sensor
func (h *Hub) handleMessage(ctx context.Context, s *Sensor, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.replyError(s, protocol.CodeBadMessage, err.Error(), "")
		return
	}

	switch msg.Type {
	case protocol.TypeBlendShapes:
		h.handleFrame(s, msg)

	case protocol.TypeVoiceStart:
		h.handleVoiceStart(ctx, s, msg)

	case protocol.TypeMic:
		mic, err := msg.GetMicData()
		if err != nil {
			h.replyError(s, protocol.CodeBadPayload, err.Error(), msg.Type)
			return
		}
		samples, err := mic.Mono()
		if err != nil {
			h.replyError(s, protocol.CodeBadPayload, err.Error(), msg.Type)
			return
		}
		if err := s.voice.Feed(samples); err != nil {
			h.replyError(s, protocol.CodeVoiceState, err.Error(), msg.Type)
		}

	case protocol.TypeVoiceStop:
		h.handleVoiceStop(s)

	case protocol.TypeVoiceReset:
		s.voice.Reset()

	case protocol.TypePing:
		ping, _ := msg.GetPingData()
		id := ""
		if ping != nil {
			id = ping.ID
		}
		pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			h.send(s, pong)
		}

	default:
		h.replyError(s, protocol.CodeUnknownType, fmt.Sprintf("unknown message type %q", msg.Type), msg.Type)
	}
}

func (h *Hub) handleFrame(s *Sensor, msg *protocol.Message) {
	data, err := msg.GetFaceFrameData()
	if err != nil {
		h.replyError(s, protocol.CodeBadPayload, err.Error(), msg.Type)
		return
	}
	h.framesReceived.Add(1)

	res := s.face.Analyze(data.Frame())
	reading := &protocol.FaceReadingData{
		SensorID:   s.ID,
		FrameID:    data.FrameID,
		Emotion:    res.Reading.Emotion,
		Confidence: res.Reading.Confidence,
		Scores:     res.Scores[:],
		Pose:       res.Pose,
	}

	out, err := protocol.NewMessage(protocol.TypeFaceReading, reading)
	if err != nil {
		return
	}
	h.send(s, out)

	h.mu.RLock()
	cb := h.onReading
	h.mu.RUnlock()
	if cb != nil {
		cb(s.ID, reading)
	}
}

func (h *Hub) handleVoiceStart(ctx context.Context, s *Sensor, msg *protocol.Message) {
	if s.voice.Recording() {
		h.replyError(s, protocol.CodeVoiceState, prosody.ErrAlreadyRecording.Error(), msg.Type)
		return
	}

	opts, err := msg.GetVoiceStartData()
	if err != nil {
		h.replyError(s, protocol.CodeBadPayload, err.Error(), msg.Type)
		return
	}
	if opts.SampleRate > 0 && opts.SampleRate != h.cfg.Voice.SampleRate {
		cfg := h.cfg.Voice
		cfg.SampleRate = opts.SampleRate
		s.voice = prosody.NewRecorder(cfg, h.logger.With("sensor", s.ID))
	}

	if err := s.voice.Start(ctx); err != nil {
		h.replyError(s, protocol.CodeVoiceState, err.Error(), msg.Type)
	}
}

func (h *Hub) handleVoiceStop(s *Sensor) {
	if !s.voice.Recording() {
		h.replyError(s, protocol.CodeVoiceState, prosody.ErrNotRecording.Error(), protocol.TypeVoiceStop)
		return
	}

	res, ok := s.voice.Stop()
	if !ok {
		// nothing recorded, nothing to report
		return
	}
	h.voiceSessions.Add(1)

	sess := s.voice.Session()
	result := &protocol.VoiceResultData{
		SensorID:  s.ID,
		SessionID: sess.ID,
		Label:     res.Label,
		Stats:     res.Stats,
		Seconds:   sess.Audio.Seconds(),
	}

	out, err := protocol.NewMessage(protocol.TypeVoiceResult, result)
	if err != nil {
		return
	}
	h.send(s, out)

	h.mu.RLock()
	cb := h.onVoiceResult
	h.mu.RUnlock()
	if cb != nil {
		cb(s.ID, result)
	}
}

func (h *Hub) replyError(s *Sensor, code, message string, offending protocol.MessageType) {
	h.rejected.Add(1)
	h.logger.Debug("sensor message rejected", "sensor", s.ID, "code", code, "error", message)

	msg, err := protocol.NewErrorMessage(code, message, offending)
	if err != nil {
		return
	}
	h.send(s, msg)
}

func (h *Hub) send(s *Sensor, msg *protocol.Message) {
	h.messagesSent.Add(1)
	if err := s.Send(msg); err != nil {
		h.logger.Debug("sensor write failed", "sensor", s.ID, "error", err)
	}
}

// SendTo sends a message to a specific sensor
func (h *Hub) SendTo(sensorID string, msg *protocol.Message) error {
	h.mu.RLock()
	sensor, ok := h.sensors[sensorID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSensorNotConnected, sensorID)
	}

	h.messagesSent.Add(1)
	return sensor.Send(msg)
}

// GetSensor returns a sensor connection by ID
func (h *Hub) GetSensor(sensorID string) *Sensor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sensors[sensorID]
}

// SensorCount returns the number of connected sensors
func (h *Hub) SensorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sensors)
}

// Stats contains hub statistics
type Stats struct {
	SensorCount      int    `json:"sensor_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	VoiceSessions    uint64 `json:"voice_sessions"`
	Errors           uint64 `json:"errors"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		SensorCount:      h.SensorCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		VoiceSessions:    h.voiceSessions.Load(),
		Errors:           h.rejected.Load(),
	}
}

// SensorInfo contains info about a connected sensor
type SensorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetSensorInfos returns info about all connected sensors
func (h *Hub) GetSensorInfos() []SensorInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SensorInfo, 0, len(h.sensors))
	for _, s := range h.sensors {
		infos = append(infos, SensorInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.LastSeen(),
		})
	}
	return infos
}

// RegisterAPIRoutes registers API routes for sensor management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	sensors := api.Group("/sensors")

	// List connected sensors
	sensors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sensors": h.GetSensorInfos(),
			"count":   h.SensorCount(),
		})
	})

	// Get hub stats
	sensors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
