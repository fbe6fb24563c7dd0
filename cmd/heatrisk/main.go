// Command heatrisk samples a temperature / humidity sensor, derives the
// WBGT heat-stress index and reports the heat-stroke risk tier against an
// outdoor reference.
//
// Usage:
//
//	heatrisk [monitor|run|serve] [flags]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luki/heatrisk/internal/api"
	"github.com/luki/heatrisk/internal/config"
	"github.com/luki/heatrisk/internal/logging"
	"github.com/luki/heatrisk/internal/monitor"
	"github.com/luki/heatrisk/internal/pipeline"
	"github.com/luki/heatrisk/internal/publish"
)

func main() {
	cmd := "monitor"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "monitor":
		err = runMonitor(args)
	case "run":
		err = runOnce(args)
	case "serve":
		err = runServe(args)
	case "help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: heatrisk [command] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  monitor   interactive risk monitor (default)")
	fmt.Println("  run       take one averaged measurement and print the report")
	fmt.Println("  serve     HTTP API: POST /runs, GET /bands, GET /health")
	fmt.Println()
	fmt.Println("Flags:")
	newFlags("heatrisk").PrintDefaults()
}

type flags struct {
	*flag.FlagSet
	config   string
	envFile  string
	endpoint string
	samples  int
	refTemp  float64
	refHum   float64
	refWBGT  float64
}

func newFlags(name string) *flags {
	f := &flags{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.StringVar(&f.config, "config", "", "properties file")
	f.StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded into the environment when present")
	f.StringVar(&f.endpoint, "endpoint", "", "transport endpoint, e.g. /dev/ttyACM0 or COM3")
	f.IntVar(&f.samples, "samples", 0, "readings averaged per run")
	f.Float64Var(&f.refTemp, "ref-temp", 0, "reference (outdoor) temperature °C")
	f.Float64Var(&f.refHum, "ref-humidity", 0, "reference (outdoor) relative humidity %")
	f.Float64Var(&f.refWBGT, "ref-wbgt", 0, "reference WBGT °C (derived from temp/humidity when omitted)")
	return f
}

// load parses flags and layers them over the file and environment settings.
func load(name string, args []string) (config.Config, error) {
	f := newFlags(name)
	if err := f.Parse(args); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(f.config, f.envFile)
	if err != nil {
		return config.Config{}, err
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "endpoint":
			cfg.TransportEndpoint = f.endpoint
		case "samples":
			cfg.SampleCount = f.samples
		case "ref-temp":
			cfg.RefTemperature = &f.refTemp
		case "ref-humidity":
			cfg.RefHumidity = &f.refHum
		case "ref-wbgt":
			cfg.RefWBGT = &f.refWBGT
		}
	})
	return cfg, cfg.Validate()
}

func newRunner(cfg config.Config, log *slog.Logger, opts ...pipeline.Option) (*pipeline.Runner, func(), error) {
	var pubs publish.Multi
	var closers []func() error

	if len(cfg.KafkaBrokers) > 0 {
		k := publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		pubs = append(pubs, k)
		closers = append(closers, k.Close)
	}
	if cfg.PublishMQTTTopic != "" {
		m, err := publish.NewMQTT(cfg.MQTTBroker, cfg.MQTTClientID+"-pub", cfg.PublishMQTTTopic)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, m)
		closers = append(closers, m.Close)
	}
	if len(pubs) > 0 {
		opts = append(opts, pipeline.WithPublisher(pubs))
	}

	settings := pipeline.Settings{
		SampleCount:     cfg.SampleCount,
		DisplayRounding: cfg.DisplayRounding,
		Transport:       cfg.Transport(),
	}
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("publisher_close_failed", "error", err)
			}
		}
	}
	return pipeline.New(settings, log, opts...), cleanup, nil
}

func runMonitor(args []string) error {
	cfg, err := load("monitor", args)
	if err != nil {
		return err
	}
	// stdout belongs to the TUI
	log, err := logging.New(nil, cfg.LogFile, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer log.Close()

	ref, err := cfg.Reference()
	if err != nil {
		return err
	}

	m := monitor.New(ref, cfg.SampleCount, cfg.DisplayRounding)
	runner, cleanup, err := newRunner(cfg, log.Logger, pipeline.WithProgress(m.Progress))
	if err != nil {
		return err
	}
	defer cleanup()

	return monitor.Run(m.WithRunner(runner))
}

func runOnce(args []string) error {
	cfg, err := load("run", args)
	if err != nil {
		return err
	}
	log, err := logging.New(os.Stderr, cfg.LogFile, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer log.Close()

	ref, err := cfg.Reference()
	if err != nil {
		return err
	}
	runner, cleanup, err := newRunner(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx, ref)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runServe(args []string) error {
	cfg, err := load("serve", args)
	if err != nil {
		return err
	}
	log, err := logging.New(os.Stdout, cfg.LogFile, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer log.Close()

	ref, err := cfg.Reference()
	if err != nil {
		return err
	}
	runner, cleanup, err := newRunner(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(runner, ref, log.Logger).Handler(os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("http_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
