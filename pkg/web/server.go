// Package web serves the affect HTTP API, the sensor ingest socket and a
// live feed of readings for dashboards.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/hub"
	"github.com/teslashibe/go-affect/pkg/ingest"
	"github.com/teslashibe/go-affect/pkg/prosody"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// maxEvents is how many recent readings /api/events keeps
const maxEvents = 200

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" mapstructure:"addr" json:"addr"`

	// CORS enables permissive cross-origin headers for browser dashboards.
	CORS bool `yaml:"cors" mapstructure:"cors" json:"cors"`

	// BodyLimit caps REST request bodies in bytes.
	BodyLimit int `yaml:"body_limit" mapstructure:"body_limit" json:"body_limit"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		CORS:      true,
		BodyLimit: 4 * 1024 * 1024,
	}
}

// Event is one reading published to dashboards.
type Event struct {
	Time   time.Time            `json:"time"`
	Type   protocol.MessageType `json:"type"`
	Sensor string               `json:"sensor"`
	Data   interface{}          `json:"data"`
}

// Server is the affect HTTP server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	faceCfg  face.Config
	voiceCfg prosody.Config

	ingest     *ingest.Hub
	readingHub *hub.Hub

	started      time.Time
	readings     atomic.Uint64
	voiceResults atomic.Uint64

	// Recent events buffer
	events   []Event
	eventsMu sync.RWMutex

	hubOnce sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewServer creates a new server
func NewServer(cfg Config, pipeline ingest.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultConfig().BodyLimit
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		faceCfg:    pipeline.Face,
		voiceCfg:   pipeline.Voice,
		ingest:     ingest.NewHub(pipeline, logger.With("component", "ingest")),
		readingHub: hub.New("readings", logger),
		started:    time.Now(),
		events:     make([]Event, 0, maxEvents),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.faceCfg.Validate(); err != nil {
		s.faceCfg = face.DefaultConfig()
	}
	if err := s.voiceCfg.Validate(); err != nil {
		s.voiceCfg = prosody.DefaultConfig()
	}

	s.ingest.OnReading(func(sensorID string, r *protocol.FaceReadingData) {
		s.readings.Add(1)
		s.publish(protocol.TypeFaceReading, sensorID, r)
	})
	s.ingest.OnVoiceResult(func(sensorID string, r *protocol.VoiceResultData) {
		s.voiceResults.Add(1)
		s.publish(protocol.TypeVoiceResult, sensorID, r)
	})

	app := fiber.New(fiber.Config{
		AppName:               "affect",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
	})

	// Middleware
	app.Use(recover.New())
	if cfg.CORS {
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type",
		}))
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleGetEvents)
	api.Post("/face/score", s.handleFaceScore)
	api.Post("/voice/classify", s.handleVoiceClassify)
	s.ingest.RegisterAPIRoutes(api)

	// Sensor ingest
	s.ingest.RegisterRoutes(app)

	// Dashboard feed
	app.Use("/ws/readings", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/readings", websocket.New(s.handleReadingsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Ingest returns the sensor hub
func (s *Server) Ingest() *ingest.Hub {
	return s.ingest
}

// runHub starts the broadcast hub once.
func (s *Server) runHub() {
	s.hubOnce.Do(func() {
		go s.readingHub.Run(s.ctx)
	})
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	s.runHub()
	s.logger.Info("server listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Serve serves on an existing listener and blocks until it stops
func (s *Server) Serve(ln net.Listener) error {
	s.runHub()
	s.logger.Info("server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

// publish records an event and broadcasts it to the sensor's dashboards
func (s *Server) publish(t protocol.MessageType, sensorID string, data interface{}) {
	s.eventsMu.Lock()
	s.events = append(s.events, Event{Time: time.Now(), Type: t, Sensor: sensorID, Data: data})
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		s.logger.Warn("encode event failed", "type", t, "error", err)
		return
	}
	bytes, err := msg.Bytes()
	if err != nil {
		return
	}
	s.readingHub.Broadcast(hub.NewReading(sensorID, bytes))
}
