// Package config loads heatrisk settings from defaults, an optional
// properties file, optional .env files and HEATRISK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/transport"
)

// Config holds every recognised option.
type Config struct {
	SampleCount     int // reads averaged per run
	DisplayRounding int // decimal places for user-facing WBGT

	TransportKind     string // "serial" or "mqtt"
	TransportEndpoint string // serial port name, e.g. "/dev/ttyACM0"
	BaudRate          int
	ReadTimeout       time.Duration
	OpenRetries       int
	OpenRetryDelay    time.Duration

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	KafkaBrokers     []string
	KafkaTopic       string
	PublishMQTTTopic string

	HTTPAddr string
	LogFile  string

	RefTemperature *float64
	RefHumidity    *float64
	RefWBGT        *float64
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SampleCount:       aggregate.DefaultCount,
		DisplayRounding:   1,
		TransportKind:     transport.KindSerial,
		TransportEndpoint: "/dev/ttyACM0",
		BaudRate:          9600,
		ReadTimeout:       5 * time.Second,
		OpenRetries:       3,
		OpenRetryDelay:    2 * time.Second,
		MQTTBroker:        "tcp://localhost:1883",
		MQTTTopic:         "sensors/dht11",
		MQTTClientID:      "heatrisk",
		HTTPAddr:          ":8090",
	}
}

// EnvPrefix namespaces environment overrides: "sample.count" is read from
// HEATRISK_SAMPLE_COUNT.
const EnvPrefix = "HEATRISK"

// DefaultEnvFile is loaded when present, before the process environment is read.
const DefaultEnvFile = ".env.local"

// newViper registers every key with its default and wires the environment.
func newViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetDefault("sample.count", d.SampleCount)
	v.SetDefault("display.rounding", d.DisplayRounding)
	v.SetDefault("transport.kind", d.TransportKind)
	v.SetDefault("transport.endpoint", d.TransportEndpoint)
	v.SetDefault("serial.baud", d.BaudRate)
	v.SetDefault("transport.read_timeout", d.ReadTimeout)
	v.SetDefault("transport.open_retries", d.OpenRetries)
	v.SetDefault("transport.open_retry_delay", d.OpenRetryDelay)
	v.SetDefault("mqtt.broker", d.MQTTBroker)
	v.SetDefault("mqtt.topic", d.MQTTTopic)
	v.SetDefault("mqtt.client_id", d.MQTTClientID)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "")
	v.SetDefault("publish.mqtt_topic", "")
	v.SetDefault("http.addr", d.HTTPAddr)
	v.SetDefault("log.file", "")
	// reference.* have no default: unset means not provided.

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds a Config from defaults, the properties file at path (if not
// empty) and the environment, in increasing precedence. Each env file that
// exists is loaded into the environment first; variables already set win.
func Load(path string, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("env file %s: %w", f, err)
		}
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("properties")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("cannot load properties file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// decode converts every key, collecting all conversion errors.
func decode(v *viper.Viper) (Config, error) {
	var errs []error
	getInt := func(key string) int {
		n, err := cast.ToIntE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}
	getDur := func(key string) time.Duration {
		d, err := cast.ToDurationE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	getFloat := func(key string) *float64 {
		if !v.IsSet(key) || v.GetString(key) == "" {
			return nil
		}
		f, err := cast.ToFloat64E(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return nil
		}
		return &f
	}

	c := Config{
		SampleCount:       getInt("sample.count"),
		DisplayRounding:   getInt("display.rounding"),
		TransportKind:     v.GetString("transport.kind"),
		TransportEndpoint: v.GetString("transport.endpoint"),
		BaudRate:          getInt("serial.baud"),
		ReadTimeout:       getDur("transport.read_timeout"),
		OpenRetries:       getInt("transport.open_retries"),
		OpenRetryDelay:    getDur("transport.open_retry_delay"),
		MQTTBroker:        v.GetString("mqtt.broker"),
		MQTTTopic:         v.GetString("mqtt.topic"),
		MQTTClientID:      v.GetString("mqtt.client_id"),
		KafkaBrokers:      splitList(v.GetString("kafka.brokers")),
		KafkaTopic:        v.GetString("kafka.topic"),
		PublishMQTTTopic:  v.GetString("publish.mqtt_topic"),
		HTTPAddr:          v.GetString("http.addr"),
		LogFile:           v.GetString("log.file"),
		RefTemperature:    getFloat("reference.temperature"),
		RefHumidity:       getFloat("reference.humidity"),
		RefWBGT:           getFloat("reference.wbgt"),
	}
	return c, errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings no run could succeed with.
func (c Config) Validate() error {
	var errs []error
	if c.SampleCount < 1 {
		errs = append(errs, fmt.Errorf("sample.count must be >= 1, got %d", c.SampleCount))
	}
	if c.DisplayRounding < 0 {
		errs = append(errs, fmt.Errorf("display.rounding must be >= 0, got %d", c.DisplayRounding))
	}
	if c.OpenRetries < 0 {
		errs = append(errs, fmt.Errorf("transport.open_retries must be >= 0, got %d", c.OpenRetries))
	}
	switch c.TransportKind {
	case transport.KindSerial:
		if c.TransportEndpoint == "" {
			errs = append(errs, errors.New("transport.endpoint is required for serial"))
		}
		if c.BaudRate <= 0 {
			errs = append(errs, fmt.Errorf("serial.baud must be > 0, got %d", c.BaudRate))
		}
	case transport.KindMQTT:
		if c.MQTTBroker == "" || c.MQTTTopic == "" {
			errs = append(errs, errors.New("mqtt.broker and mqtt.topic are required for mqtt"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind %q is not serial or mqtt", c.TransportKind))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka.topic is required when kafka.brokers is set"))
	}
	return errors.Join(errs...)
}

// Transport returns the transport settings.
func (c Config) Transport() transport.Config {
	return transport.Config{
		Kind: c.TransportKind,
		Serial: transport.SerialConfig{
			Port:        c.TransportEndpoint,
			BaudRate:    c.BaudRate,
			ReadTimeout: c.ReadTimeout,
		},
		MQTT: transport.MQTTConfig{
			Broker:      c.MQTTBroker,
			Topic:       c.MQTTTopic,
			ClientID:    c.MQTTClientID,
			ReadTimeout: c.ReadTimeout,
		},
		Retries:    c.OpenRetries,
		RetryDelay: c.OpenRetryDelay,
	}
}

// Reference returns the configured reference triple. When only temperature
// and humidity are set the reference WBGT is derived from them.
func (c Config) Reference() (compare.Reference, error) {
	ref := compare.Reference{Temperature: c.RefTemperature, Humidity: c.RefHumidity, WBGT: c.RefWBGT}
	if ref.WBGT == nil && ref.Temperature != nil && ref.Humidity != nil {
		return compare.ReferenceFromConditions(*ref.Temperature, *ref.Humidity)
	}
	return ref, nil
}
