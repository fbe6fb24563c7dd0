// Package publish forwards finished run reports to Kafka and MQTT.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/luki/heatrisk/internal/pipeline"
)

// Kafka writes each report as one JSON message keyed by run id.
type Kafka struct {
	w *kafka.Writer
}

// NewKafka creates a writer for the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func message(r pipeline.Report) (kafka.Message, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(r.RunID.String()), Value: b, Time: r.FinishedAt}, nil
}

// Publish implements pipeline.Publisher.
func (k *Kafka) Publish(ctx context.Context, r pipeline.Report) error {
	msg, err := message(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", k.w.Topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error { return k.w.Close() }

// MQTT publishes each report as a JSON payload on a topic.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// NewMQTT connects to the broker.
func NewMQTT(broker, clientID, topic string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, token.Error())
	}
	return &MQTT{client: c, topic: topic, timeout: 5 * time.Second}, nil
}

// Publish implements pipeline.Publisher.
func (m *MQTT) Publish(_ context.Context, r pipeline.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("mqtt publish %s: timed out", m.topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

// Multi fans a report out to several publishers, returning every failure.
type Multi []pipeline.Publisher

// Publish implements pipeline.Publisher.
func (m Multi) Publish(ctx context.Context, r pipeline.Report) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
