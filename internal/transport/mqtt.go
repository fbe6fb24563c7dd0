package transport

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes a broker topic that carries "<rh>x<temp>" payloads,
// one reading per message.
type MQTTConfig struct {
	Broker      string // e.g. "tcp://localhost:1883"
	Topic       string
	ClientID    string
	ReadTimeout time.Duration
}

// MQTT adapts a subscribed topic to a line transport.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	lines   chan string
}

// OpenMQTT connects to the broker and subscribes to the topic.
func OpenMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}

	m := newMQTT(c, cfg.Topic, cfg.ReadTimeout)
	if token := c.Subscribe(cfg.Topic, 0, m.onMessage); token.Wait() && token.Error() != nil {
		c.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", cfg.Topic, token.Error())
	}
	return m, nil
}

func newMQTT(c mqtt.Client, topic string, timeout time.Duration) *MQTT {
	return &MQTT{client: c, topic: topic, timeout: timeout, lines: make(chan string, 16)}
}

// onMessage queues a payload, dropping it when the queue is full.
func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.lines <- string(msg.Payload()):
	default:
	}
}

// Flush discards every payload queued so far.
func (m *MQTT) Flush() error {
	for {
		select {
		case <-m.lines:
		default:
			return nil
		}
	}
}

// ReadLine waits for the next payload.
func (m *MQTT) ReadLine() (string, error) {
	var timeout <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s := <-m.lines:
		return strings.TrimRight(s, "\r\n"), nil
	case <-timeout:
		return "", ErrTimeout
	}
}

// Close unsubscribes and disconnects.
func (m *MQTT) Close() error {
	token := m.client.Unsubscribe(m.topic)
	token.Wait()
	m.client.Disconnect(250)
	return token.Error()
}
