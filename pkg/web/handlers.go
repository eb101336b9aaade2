package web

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/hub"
	"github.com/teslashibe/go-affect/pkg/ingest"
	"github.com/teslashibe/go-affect/pkg/prosody"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// Status is the server summary returned by /api/status
type Status struct {
	Uptime       string       `json:"uptime"`
	Sensors      int          `json:"sensors"`
	Dashboards   int          `json:"dashboards"`
	Readings     uint64       `json:"readings"`
	VoiceResults uint64       `json:"voice_results"`
	Ingest       ingest.Stats `json:"ingest"`
	Broadcast    hub.Stats    `json:"broadcast"`
}

// handleStatus returns the server summary
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(Status{
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Sensors:      s.ingest.SensorCount(),
		Dashboards:   s.readingHub.ClientCount(),
		Readings:     s.readings.Load(),
		VoiceResults: s.voiceResults.Load(),
		Ingest:       s.ingest.GetStats(),
		Broadcast:    s.readingHub.GetStats(),
	})
}

// handleHealth is a liveness probe
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"sensors": s.ingest.SensorCount(),
	})
}

// handleMetrics exposes counters in Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	stats := s.ingest.GetStats()
	return c.SendString(fmt.Sprintf(`# HELP affect_sensors Connected sensor count
# TYPE affect_sensors gauge
affect_sensors %d

# HELP affect_dashboards Connected dashboard count
# TYPE affect_dashboards gauge
affect_dashboards %d

# HELP affect_frames_received Total face frames received
# TYPE affect_frames_received counter
affect_frames_received %d

# HELP affect_voice_sessions Total voice sessions classified
# TYPE affect_voice_sessions counter
affect_voice_sessions %d

# HELP affect_messages_rejected Total inbound messages rejected
# TYPE affect_messages_rejected counter
affect_messages_rejected %d
`, s.ingest.SensorCount(), s.readingHub.ClientCount(), stats.FramesReceived, stats.VoiceSessions, stats.Errors))
}

// handleGetEvents returns recent readings, oldest first
func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

// FaceScoreResponse is the stateless score of one frame
type FaceScoreResponse struct {
	Emotion face.Emotion `json:"emotion"`
	Score   float64      `json:"score"`
	Scores  []face.Score `json:"scores"`
	Pose    face.Pose    `json:"pose"`
}

// handleFaceScore scores a single frame without smoothing
func (s *Server) handleFaceScore(c *fiber.Ctx) error {
	var req protocol.FaceFrameData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	frame := req.Frame()
	pose := face.PoseFromTransform(frame.Transform)
	scores := face.NewScorer(face.NewAttenuator(s.faceCfg)).ScorePose(frame, pose)
	top := face.Select(scores)

	return c.JSON(FaceScoreResponse{
		Emotion: top.Emotion,
		Score:   top.Value,
		Scores:  scores[:],
		Pose:    pose,
	})
}

// VoiceClassifyRequest carries either a feature series or raw buffers
type VoiceClassifyRequest struct {
	Pitch     []float64 `json:"pitch"`
	Intensity []float64 `json:"intensity"`

	// Buffers are mono sample buffers in [-1, 1]; when present they are
	// analyzed and Pitch/Intensity are ignored.
	Buffers [][]float64 `json:"buffers"`
}

// VoiceClassifyResponse is the stateless classification of one session
type VoiceClassifyResponse struct {
	Classified bool          `json:"classified"`
	Label      prosody.Label `json:"label,omitempty"`
	Stats      prosody.Stats `json:"stats"`
}

// handleVoiceClassify classifies one complete session
func (s *Server) handleVoiceClassify(c *fiber.Ctx) error {
	var req VoiceClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var series *prosody.FeatureSeries
	if len(req.Buffers) > 0 {
		analyzer := s.voiceCfg.Analyzer()
		series = &prosody.FeatureSeries{}
		for _, buf := range req.Buffers {
			if len(buf) < 2 {
				continue
			}
			series.Append(analyzer.Analyze(buf))
		}
	} else {
		series = prosody.NewFeatureSeries(req.Pitch, req.Intensity)
		if series == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "pitch and intensity must have the same length",
			})
		}
	}

	res, ok := prosody.NewClassifier().Classify(series)
	if !ok {
		return c.JSON(VoiceClassifyResponse{Classified: false})
	}
	return c.JSON(VoiceClassifyResponse{
		Classified: true,
		Label:      res.Label,
		Stats:      res.Stats,
	})
}

// handleReadingsWS streams readings to a dashboard. ?sensor=<id> follows
// one sensor; the dashboard can switch later by sending a hub.Subscription.
func (s *Server) handleReadingsWS(c *websocket.Conn) {
	client := hub.NewClient(s.readingHub, c, c.Query("sensor"))
	client.Run()
}
