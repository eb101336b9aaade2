package hub

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// subscriptions are the only thing a dashboard sends
	maxSubscriptionSize = 1024

	sendBuffer = 256
)

// Client is one dashboard connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	sensor atomic.Pointer[string]
}

// NewClient registers a dashboard that follows sensor, or every sensor
// when sensor is empty.
func NewClient(hub *Hub, conn *websocket.Conn, sensor string) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	client.Follow(sensor)

	select {
	case hub.register <- client:
	case <-hub.done:
		close(client.send)
	}
	return client
}

// Follow switches the sensor this dashboard receives readings for.
func (c *Client) Follow(sensor string) {
	c.sensor.Store(&sensor)
}

// Sensor returns the followed sensor id; empty means all sensors.
func (c *Client) Sensor() string {
	if p := c.sensor.Load(); p != nil {
		return *p
	}
	return ""
}

// wants reports whether msg matches the dashboard's subscription.
func (c *Client) wants(msg Message) bool {
	following := c.Sensor()
	return following == "" || msg.Sensor == "" || msg.Sensor == following
}

// Run pumps readings to the dashboard and blocks until it disconnects.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump applies subscription changes and detects disconnection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxSubscriptionSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var sub Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			c.hub.logger.Debug("ignoring dashboard message", "error", err)
			continue
		}
		c.Follow(sub.Sensor)
		c.hub.logger.Debug("dashboard subscription", "sensor", sub.Sensor)
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
