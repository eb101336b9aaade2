package ingest

import (
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/prosody"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// startServer serves the hub on a random local port.
func startServer(t *testing.T, hub *Hub) string {
	t.Helper()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return "ws://" + ln.Addr().String()
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func receive(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	if hub.SensorCount() != 0 {
		t.Error("SensorCount should be 0 initially")
	}

	stats := hub.GetStats()
	if stats.MessagesReceived != 0 || stats.MessagesSent != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
	if hub.GetSensor("nonexistent") != nil {
		t.Error("GetSensor should return nil for nonexistent sensor")
	}
}

func TestSendToNonexistentSensor(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	msg, _ := protocol.NewPingMessage("x")
	if err := hub.SendTo("nonexistent", msg); err == nil {
		t.Error("SendTo should return error for nonexistent sensor")
	}
}

func TestWebSocketConnection(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	url := startServer(t, hub)

	ws := dial(t, url+"/ws/sensor/cam-1")
	waitFor(t, func() bool { return hub.SensorCount() == 1 })

	if hub.GetSensor("cam-1") == nil {
		t.Error("GetSensor should return the connected sensor")
	}

	ws.Close()
	waitFor(t, func() bool { return hub.SensorCount() == 0 })
}

func TestGeneratedSensorID(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	url := startServer(t, hub)

	dial(t, url+"/ws/sensor")
	waitFor(t, func() bool { return hub.SensorCount() == 1 })

	infos := hub.GetSensorInfos()
	if len(infos[0].ID) != 36 {
		t.Errorf("Expected a uuid sensor id, got %q", infos[0].ID)
	}
}

func TestFaceFrameProducesReading(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	var callbacks atomic.Int32
	hub.OnReading(func(sensorID string, r *protocol.FaceReadingData) {
		if sensorID == "cam-1" && r.Emotion == face.Happy {
			callbacks.Add(1)
		}
	})

	url := startServer(t, hub)
	ws := dial(t, url+"/ws/sensor/cam-1")

	frame := face.Frame{
		BlendShapes: map[face.BlendShape]float64{
			face.MouthSmileLeft:  0.8,
			face.MouthSmileRight: 0.8,
			face.EyeSquintLeft:   0.1,
			face.EyeSquintRight:  0.1,
		},
		Transform: face.Identity(),
	}
	msg, _ := protocol.NewFaceFrameMessage(frame, 1)
	send(t, ws, msg)

	resp := receive(t, ws)
	if resp.Type != protocol.TypeFaceReading {
		t.Fatalf("Type = %s, want face_reading", resp.Type)
	}

	reading, err := resp.GetFaceReadingData()
	if err != nil {
		t.Fatalf("GetFaceReadingData() error = %v", err)
	}
	if reading.Emotion != face.Happy {
		t.Errorf("Emotion = %s, want Happy", reading.Emotion)
	}
	if d := reading.Confidence - 0.94; d > 1e-9 || d < -1e-9 {
		t.Errorf("Confidence = %v, want 0.94", reading.Confidence)
	}
	if reading.FrameID != 1 {
		t.Errorf("FrameID = %d, want 1", reading.FrameID)
	}
	if len(reading.Scores) != face.NumEmotions {
		t.Errorf("Scores = %d entries, want %d", len(reading.Scores), face.NumEmotions)
	}

	waitFor(t, func() bool { return callbacks.Load() == 1 })

	if hub.GetStats().FramesReceived != 1 {
		t.Errorf("FramesReceived = %d, want 1", hub.GetStats().FramesReceived)
	}
}

func TestVoiceSession(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)

	results := make(chan *protocol.VoiceResultData, 1)
	hub.OnVoiceResult(func(sensorID string, r *protocol.VoiceResultData) {
		results <- r
	})

	url := startServer(t, hub)
	ws := dial(t, url+"/ws/sensor/mic-1")

	start, _ := protocol.NewVoiceStartMessage(16000)
	send(t, ws, start)

	// quiet and flat
	buf := make([]float64, 1024)
	for i := range buf {
		buf[i] = 0.1
	}
	for i := 0; i < 3; i++ {
		mic, _ := protocol.NewFloatMicMessage(buf, 16000)
		send(t, ws, mic)
	}
	pcm, _ := protocol.NewMicMessage(make([]int16, 1024), 16000)
	send(t, ws, pcm)

	// too short to analyze; must not pad the session
	empty, _ := protocol.NewFloatMicMessage(nil, 16000)
	send(t, ws, empty)
	single, _ := protocol.NewFloatMicMessage([]float64{0.9}, 16000)
	send(t, ws, single)

	stop, _ := protocol.NewVoiceStopMessage()
	send(t, ws, stop)

	resp := receive(t, ws)
	if resp.Type != protocol.TypeVoiceResult {
		t.Fatalf("Type = %s, want voice_result", resp.Type)
	}

	result, err := resp.GetVoiceResultData()
	if err != nil {
		t.Fatalf("GetVoiceResultData() error = %v", err)
	}
	if result.Label != prosody.Sad {
		t.Errorf("Label = %s, want Sad", result.Label)
	}
	if result.Stats.Buffers != 4 {
		t.Errorf("Buffers = %d, want 4", result.Stats.Buffers)
	}
	if result.SessionID == "" {
		t.Error("SessionID should be set")
	}
	if result.Seconds != 0.256 {
		t.Errorf("Seconds = %v, want 0.256", result.Seconds)
	}

	select {
	case r := <-results:
		if r.SensorID != "mic-1" {
			t.Errorf("SensorID = %s, want mic-1", r.SensorID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("voice result callback not called")
	}

	if got := hub.GetStats().VoiceSessions; got != 1 {
		t.Errorf("VoiceSessions = %d, want 1", got)
	}
}

func TestVoiceStopWithoutStart(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	url := startServer(t, hub)
	ws := dial(t, url+"/ws/sensor/mic-2")

	stop, _ := protocol.NewVoiceStopMessage()
	send(t, ws, stop)

	resp := receive(t, ws)
	if resp.Type != protocol.TypeError {
		t.Fatalf("Type = %s, want error", resp.Type)
	}
	data, _ := resp.GetErrorData()
	if data.Code != protocol.CodeVoiceState {
		t.Errorf("Code = %s, want %s", data.Code, protocol.CodeVoiceState)
	}
}

func TestEmptyVoiceSessionReportsNothing(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	url := startServer(t, hub)
	ws := dial(t, url+"/ws/sensor/mic-3")

	start, _ := protocol.NewVoiceStartMessage(0)
	send(t, ws, start)
	empty, _ := protocol.NewFloatMicMessage(nil, 16000)
	send(t, ws, empty)
	stop, _ := protocol.NewVoiceStopMessage()
	send(t, ws, stop)

	// the next reply must be the pong, not a voice_result
	ping, _ := protocol.NewPingMessage("after-stop")
	send(t, ws, ping)

	resp := receive(t, ws)
	if resp.Type != protocol.TypePong {
		t.Fatalf("Type = %s, want pong", resp.Type)
	}
	if got := hub.GetStats().VoiceSessions; got != 0 {
		t.Errorf("VoiceSessions = %d, want 0 for an empty session", got)
	}
}

func TestBadMessagesKeepConnection(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	url := startServer(t, hub)
	ws := dial(t, url+"/ws/sensor/noisy")

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"invalid json", "not json", protocol.CodeBadMessage},
		{"unknown type", `{"type":"motor"}`, protocol.CodeUnknownType},
		{"bad frame payload", `{"type":"blendshapes","data":{"blend_shapes":"nope"}}`, protocol.CodeBadPayload},
		{"mic outside session", `{"type":"mic","data":{"format":"float","samples":[0.1,0.2]}}`, protocol.CodeVoiceState},
		{"bad mic format", `{"type":"mic","data":{"format":"mp3"}}`, protocol.CodeBadPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatalf("write: %v", err)
			}
			resp := receive(t, ws)
			if resp.Type != protocol.TypeError {
				t.Fatalf("Type = %s, want error", resp.Type)
			}
			data, _ := resp.GetErrorData()
			if data.Code != tt.code {
				t.Errorf("Code = %s, want %s", data.Code, tt.code)
			}
		})
	}

	ping, _ := protocol.NewPingMessage("still-here")
	send(t, ws, ping)
	resp := receive(t, ws)
	if resp.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", resp.Type)
	}
	pong, _ := resp.GetPongData()
	if pong.ID != "still-here" {
		t.Errorf("Pong ID = %s, want still-here", pong.ID)
	}
}

func TestAPIListSensors(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/sensors/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "sensors") {
		t.Error("Response should contain 'sensors' field")
	}

	req = httptest.NewRequest("GET", "/api/sensors/stats", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.SensorCount != 0 {
		t.Errorf("SensorCount = %d, want 0", stats.SensorCount)
	}
}

func TestUpgradeRequired(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/sensor", nil))
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}
