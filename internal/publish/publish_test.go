package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/pipeline"
	"github.com/luki/heatrisk/internal/risk"
)

func sampleReport() pipeline.Report {
	return pipeline.Report{
		RunID:       uuid.MustParse("8f14e45f-ceea-467a-9af0-6f3c5b1d2e10"),
		FinishedAt:  time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC),
		Sample:      aggregate.Sample{Temperature: 30, Humidity: 70, WBGT: 27, Count: 5},
		Tier:        risk.Moderate,
		DisplayWBGT: 26.9,
	}
}

func TestKafkaMessage(t *testing.T) {
	rep := sampleReport()
	msg, err := message(rep)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Key) != rep.RunID.String() {
		t.Errorf("key: got %q", msg.Key)
	}
	if !msg.Time.Equal(rep.FinishedAt) {
		t.Errorf("time: got %v", msg.Time)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["tier"] != "MODERATE" {
		t.Errorf("tier: got %v, want MODERATE", decoded["tier"])
	}
}

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeClient struct {
	mqtt.Client
	topic    string
	payloads [][]byte
	err      error
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.topic = topic
	c.payloads = append(c.payloads, payload.([]byte))
	return fakeToken{err: c.err}
}

func TestMQTTPublish(t *testing.T) {
	fc := &fakeClient{}
	m := &MQTT{client: fc, topic: "heatrisk/reports", timeout: time.Second}

	if err := m.Publish(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fc.topic != "heatrisk/reports" || len(fc.payloads) != 1 {
		t.Fatalf("got topic %q, %d payloads", fc.topic, len(fc.payloads))
	}
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, pipeline.Report) error {
	s.calls++
	return s.err
}

func TestMultiPublishesToAll(t *testing.T) {
	boom := errors.New("down")
	a, b := &stubPublisher{err: boom}, &stubPublisher{}
	err := Multi{a, b}.Publish(context.Background(), sampleReport())
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls: a=%d b=%d, want 1/1", a.calls, b.calls)
	}
}
