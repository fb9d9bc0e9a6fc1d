package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/heating-panel-bridge/pkg/config"
	"github.com/ericogr/heating-panel-bridge/pkg/output"
	"github.com/ericogr/heating-panel-bridge/pkg/output/console"
	"github.com/ericogr/heating-panel-bridge/pkg/output/influx"
	"github.com/ericogr/heating-panel-bridge/pkg/output/mqtt"
	"github.com/ericogr/heating-panel-bridge/pkg/poller"
	"github.com/ericogr/heating-panel-bridge/pkg/sensor"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("stopped")
	}
}

func run(cfg config.Config) error {
	log.Info().Str("sensor", cfg.SensorType).Str("bus", cfg.I2C.Bus).Int("address", cfg.I2C.Address).Msg("starting")

	src, err := sensor.New(cfg)
	if err != nil {
		return errors.Annotate(err, "sensor")
	}
	defer src.Close()

	outs, err := initOutputs(cfg)
	if err != nil {
		return errors.Annotate(err, "outputs")
	}
	defer func() {
		for _, o := range outs {
			if err := o.Close(); err != nil {
				log.Warn().Err(err).Msg("close output")
			}
		}
	}()

	dec := telemetry.NewDecoder(newCarryCache(cfg))
	p := poller.New(src, dec, outs, poller.Options{
		Room:       cfg.Room,
		Interval:   time.Duration(cfg.IntervalMs) * time.Millisecond,
		BackoffMin: time.Duration(cfg.Backoff.MinMs) * time.Millisecond,
		BackoffMax: time.Duration(cfg.Backoff.MaxMs) * time.Millisecond,
		Factor:     cfg.Backoff.Factor,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGUSR1 polls immediately
	usr := make(chan os.Signal, 1)
	signal.Notify(usr, syscall.SIGUSR1)
	go func() {
		for range usr {
			p.Trigger()
		}
	}()

	err = p.Run(ctx)
	st := p.Stats()
	log.Info().Uint64("polls", st.Polls).Uint64("accepted", st.Accepted).Uint64("rejected", st.Rejected).
		Uint64("spikes", st.Spikes).Uint64("errors", st.Errors).Msg("poller done")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newCarryCache(cfg config.Config) *telemetry.CarryCache {
	c := telemetry.NewCarryCache(cfg.SpikeThreshold)
	c.SignedCompare = cfg.SpikeSignedCompare
	return c
}

func setupLogging(cfg config.Config, w io.Writer) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Annotatef(err, "log level %q", cfg.LogLevel)
	}
	zerolog.SetGlobalLevel(level)
	switch cfg.LogFormat {
	case "", "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	default:
		return errors.NotValidf("log format %q", cfg.LogFormat)
	}
	return nil
}

func initOutputs(cfg config.Config) ([]output.Output, error) {
	outs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		var (
			o   output.Output
			err error
		)
		switch oc.Type {
		case config.OutputConsole:
			o = console.NewConsole()
		case config.OutputMQTT:
			if oc.MQTT == nil {
				err = errors.NotValidf("mqtt output without mqtt section")
				break
			}
			o, err = mqtt.NewMQTT(*oc.MQTT)
		case config.OutputInflux:
			if oc.Influx == nil {
				err = errors.NotValidf("influx output without influx section")
				break
			}
			o, err = influx.NewInflux(*oc.Influx)
		default:
			err = errors.NotSupportedf("output type %q", oc.Type)
		}
		if err != nil {
			for _, prev := range outs {
				_ = prev.Close()
			}
			return nil, err
		}
		log.Info().Str("type", oc.Type).Msg("output ready")
		outs = append(outs, o)
	}
	return outs, nil
}
