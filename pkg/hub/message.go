// Package hub fans readings out to dashboard websocket clients. Each
// dashboard may follow a single sensor or every sensor at once.
package hub

// Message is one encoded reading queued for dashboards.
type Message struct {
	// Sensor is the id of the sensor that produced the reading. An empty
	// id reaches every dashboard regardless of its subscription.
	Sensor string
	Data   []byte
}

// NewReading wraps a pre-encoded reading produced by sensor.
func NewReading(sensor string, data []byte) Message {
	return Message{Sensor: sensor, Data: data}
}

// NewJSONMessage wraps pre-encoded bytes addressed to every dashboard.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// Subscription is the control message a dashboard sends to pick the
// sensor it follows, e.g. {"sensor":"cam-1"}. An empty sensor follows all.
type Subscription struct {
	Sensor string `json:"sensor"`
}
