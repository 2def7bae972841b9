package viz

import (
	"encoding/json"
	"fmt"
	"image/color"
	"path"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes MQTT messages. mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes records as JSON messages to <prefix>/<topic>.
// Messages are sent with QoS 0 and never retried.
type MQTT struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
}

type message struct {
	Topic  string      `json:"topic"`
	Time   float64     `json:"time"`
	Kind   string      `json:"kind"`
	Points []Point     `json:"points"`
	Color  *color.RGBA `json:"color,omitempty"`
	Radius float64     `json:"radius,omitempty"`
}

// NewMQTT creates new MQTT sink publishing through pub.
func NewMQTT(pub Publisher, prefix string, timeout time.Duration) *MQTT {
	return &MQTT{
		pub:     pub,
		prefix:  prefix,
		timeout: timeout,
	}
}

// DialMQTT connects to MQTT broker and returns the connected client.
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetCleanSession(true)
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(false)
	opts.SetProtocolVersion(4)
	opts.SetClientID(clientID)
	opts.AddBroker(broker)
	opts.SetKeepAlive(10 * time.Second)

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}

	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	return client, nil
}

// Record publishes the record.
func (m *MQTT) Record(topic string, ts float64, p Payload) error {
	msg := message{
		Topic:  topic,
		Time:   ts,
		Kind:   p.Kind(),
		Points: p.Points(),
	}

	switch v := p.(type) {
	case Scatter:
		msg.Color = &v.Color
		msg.Radius = v.Radius
	case Polyline:
		msg.Color = &v.Color
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	tok := m.pub.Publish(path.Join(m.prefix, topic), 0, false, data)
	if !tok.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish %s timed out", topic)
	}

	return tok.Error()
}
