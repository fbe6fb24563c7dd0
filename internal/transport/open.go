package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luki/heatrisk/internal/sensor"
)

// Kinds of transport.
const (
	KindSerial = "serial"
	KindMQTT   = "mqtt"
)

// Config selects and configures a transport.
type Config struct {
	Kind       string
	Serial     SerialConfig
	MQTT       MQTTConfig
	Retries    int           // extra open attempts after the first
	RetryDelay time.Duration // wait between attempts
}

// Dialer opens a transport once.
type Dialer func(cfg Config) (sensor.Transport, error)

// Dial opens the configured transport kind once.
func Dial(cfg Config) (sensor.Transport, error) {
	switch cfg.Kind {
	case KindSerial, "":
		s, err := OpenSerial(cfg.Serial)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindMQTT:
		m, err := OpenMQTT(cfg.MQTT)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// Open dials with bounded retries. Failure is reported as a
// *sensor.TransportError with Op "open".
func Open(ctx context.Context, cfg Config, dial Dialer, log *slog.Logger) (sensor.Transport, error) {
	if dial == nil {
		dial = Dial
	}
	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 {
			log.Warn("transport_open_retry", "kind", cfg.Kind, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, &sensor.TransportError{Op: "open", Err: ctx.Err()}
			case <-time.After(cfg.RetryDelay):
			}
		}
		t, err := dial(cfg)
		if err == nil {
			log.Info("transport_opened", "kind", cfg.Kind, "attempts", attempt+1)
			return t, nil
		}
		lastErr = err
	}
	log.Error("transport_open_failed", "kind", cfg.Kind, "attempts", cfg.Retries+1, "error", lastErr)
	return nil, &sensor.TransportError{Op: "open", Err: lastErr}
}
