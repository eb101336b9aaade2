// Package client connects a sensor to an affect server over the ingest
// WebSocket and delivers the readings it sends back.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-affect/pkg/face"
	"github.com/teslashibe/go-affect/pkg/protocol"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("client: connection closed")

const (
	writeWait = 10 * time.Second
	pingEvery = 30 * time.Second
)

// Client is one sensor connection to an affect server
type Client struct {
	ws     *websocket.Conn
	wsMu   sync.Mutex
	logger *slog.Logger

	sensorID string
	frameID  uint64

	done      chan struct{}
	closeOnce sync.Once

	// Callbacks, set before Dial
	OnReading     func(r *protocol.FaceReadingData)
	OnVoiceResult func(r *protocol.VoiceResultData)
	OnError       func(e *protocol.ErrorData)
	OnPong        func(p *protocol.PongData)
}

// New creates a client for the given sensor id. An empty id lets the
// server assign one.
func New(sensorID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sensorID: sensorID,
		logger:   logger.With("sensor", sensorID),
		done:     make(chan struct{}),
	}
}

// SensorURL builds the ingest socket URL from a server base URL such as
// "http://localhost:8080" or "ws://localhost:8080".
func SensorURL(base, sensorID string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://"):
		base = "ws://" + base
	}
	if sensorID == "" {
		return base + "/ws/sensor"
	}
	return base + "/ws/sensor/" + sensorID
}

// Dial connects to the server at base and starts reading replies
func (c *Client) Dial(ctx context.Context, base string) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	url := SensorURL(base, c.sensorID)
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	c.ws = ws

	c.logger.Info("connected", "url", url)

	go c.handleMessages()
	go c.keepAlive()

	return nil
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// keepAlive pings the server until the connection ends
func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessages dispatches server replies to the callbacks
func (c *Client) handleMessages() {
	defer c.shutdown()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read ended", "error", err)
			}
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("bad message from server", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeFaceReading:
			r, err := msg.GetFaceReadingData()
			if err == nil && c.OnReading != nil {
				c.OnReading(r)
			}
		case protocol.TypeVoiceResult:
			r, err := msg.GetVoiceResultData()
			if err == nil && c.OnVoiceResult != nil {
				c.OnVoiceResult(r)
			}
		case protocol.TypeError:
			e, err := msg.GetErrorData()
			if err != nil {
				continue
			}
			c.logger.Warn("server error", "code", e.Code, "message", e.Message)
			if c.OnError != nil {
				c.OnError(e)
			}
		case protocol.TypePong:
			p, err := msg.GetPongData()
			if err == nil && c.OnPong != nil {
				c.OnPong(p)
			}
		default:
			c.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// send writes one protocol message
func (c *Client) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// SendFrame sends one face frame and returns the frame id it was tagged with
func (c *Client) SendFrame(f face.Frame) (uint64, error) {
	c.wsMu.Lock()
	c.frameID++
	id := c.frameID
	c.wsMu.Unlock()

	return id, c.send(protocol.NewFaceFrameMessage(f, id))
}

// StartVoice opens a voice session
func (c *Client) StartVoice(sampleRate int) error {
	return c.send(protocol.NewVoiceStartMessage(sampleRate))
}

// SendPCM sends one buffer of 16-bit mono audio
func (c *Client) SendPCM(samples []int16, sampleRate int) error {
	return c.send(protocol.NewMicMessage(samples, sampleRate))
}

// SendSamples sends one buffer of float mono audio in [-1, 1]
func (c *Client) SendSamples(samples []float64, sampleRate int) error {
	return c.send(protocol.NewFloatMicMessage(samples, sampleRate))
}

// StopVoice ends the voice session; the result arrives via OnVoiceResult
func (c *Client) StopVoice() error {
	return c.send(protocol.NewVoiceStopMessage())
}

// ResetVoice discards any voice session in progress
func (c *Client) ResetVoice() error {
	return c.send(protocol.NewVoiceResetMessage())
}

// Ping sends an application ping; the reply arrives via OnPong
func (c *Client) Ping(id string) error {
	return c.send(protocol.NewPingMessage(id))
}

// Close closes the connection
func (c *Client) Close() error {
	if c.ws == nil {
		return nil
	}
	c.wsMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wsMu.Unlock()

	err := c.ws.Close()
	c.shutdown()
	return err
}
