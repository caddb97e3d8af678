package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ericogr/rfid-deck/pkg/config"
	"github.com/ericogr/rfid-deck/pkg/deck"
	"github.com/ericogr/rfid-deck/pkg/led"
	"github.com/ericogr/rfid-deck/pkg/logger"
	"github.com/ericogr/rfid-deck/pkg/output"
	"github.com/ericogr/rfid-deck/pkg/output/console"
	"github.com/ericogr/rfid-deck/pkg/output/mqtt"
	"github.com/ericogr/rfid-deck/pkg/output/sqlite"
	"github.com/ericogr/rfid-deck/pkg/rfid"
	"github.com/ericogr/rfid-deck/pkg/scheduler"
	"github.com/ericogr/rfid-deck/pkg/sensor"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// simulationCycle is the number of samples in one simulated approach.
const simulationCycle = 1000

type outputEntry struct {
	Type       string
	IntervalMs int
	Out        output.Output
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		code := configExitCode(err)
		if code != 0 {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		}
		os.Exit(code)
	}
	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().
		Str("sensor_type", cfg.SensorType).
		Str("led_type", cfg.LEDType).
		Int("outputs", len(cfg.Outputs)).
		Int("poll_period_ms", cfg.RFID.PollPeriodMs).
		Msg("config loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("exiting")
	}
	logger.Info().Msg("Exiting...")
}

// configExitCode maps a config.Load error to the process exit status. Asking
// for help is not a failure.
func configExitCode(err error) int {
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	return 1
}

func run(ctx context.Context, cfg config.Config) error {
	sens, err := newSensor(cfg)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	defer sens.Close()

	indicator, closeLED, err := newLED(cfg)
	if err != nil {
		return fmt.Errorf("led: %w", err)
	}
	defer closeLED()

	sched := scheduler.New(logger.New("scheduler"))
	tel := telemetry.NewRegistry()

	d, err := rfid.New(rfid.Options{
		Params:         paramsFromConfig(cfg),
		Reader:         sensor.NewChannel(sens, logger.New("sensor")),
		LED:            indicator,
		Scheduler:      sched,
		Telemetry:      tel,
		ConfigureInput: inputConfigurer(cfg),
		Log:            logger.New("rfid"),
	})
	if err != nil {
		return err
	}

	decks := deck.NewRegistry(logger.New("deck"))
	if err := decks.Register(d.Driver()); err != nil {
		return err
	}
	if _, err := decks.Discover(deckInfo(cfg)); err != nil {
		return err
	}

	entries, err := initOutputs(&cfg, cfg.IntervalMs, tel.Names())
	if err != nil {
		return err
	}
	defer func() {
		for _, e := range entries {
			if err := e.Out.Close(); err != nil {
				logger.Error().Err(err).Str("output", e.Type).Msg("close output")
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	for _, e := range entries {
		e := e
		g.Go(func() error { return publishLoop(gctx, e, tel) })
	}
	return g.Wait()
}

func paramsFromConfig(cfg config.Config) rfid.Params {
	r := cfg.RFID
	return rfid.Params{
		MaxStrength:     uint16(r.MaxStrength),
		BasePeriod:      scheduler.MS(uint32(r.BasePeriodMs)),
		LandedThreshold: uint16(r.LandedThreshold),
		DefaultDelay:    scheduler.MS(uint32(r.DefaultDelayMs)),
		MaxDelay:        scheduler.MS(uint32(r.MaxDelayMs)),
		PollPeriod:      scheduler.MS(uint32(r.PollPeriodMs)),
		StartupWait:     time.Duration(r.StartupWaitMs) * time.Millisecond,
	}
}

func deckInfo(cfg config.Config) deck.Info {
	info := deck.Info{VID: uint8(cfg.DeckVID), PID: uint8(cfg.DeckPID), Pins: map[deck.Pin]string{}}
	if cfg.InputPin != "" {
		info.Pins[rfid.InputPin] = cfg.InputPin
	}
	return info
}

func inputConfigurer(cfg config.Config) func(string) error {
	if cfg.SensorType == "simulation" {
		return nil
	}
	return sensor.ConfigureInput
}

func newSensor(cfg config.Config) (sensor.Sensor, error) {
	if cfg.SensorType == "simulation" {
		return sensor.NewFakeSensor(simulationCycle, time.Now().UnixNano())
	}
	return sensor.NewADS1115Sensor(cfg)
}

func newLED(cfg config.Config) (led.LED, func(), error) {
	if cfg.LEDType == "log" {
		return led.NewLog(logger.New("led")), func() {}, nil
	}
	l, err := led.NewGPIO(cfg.LEDPin, cfg.LEDActiveLow, logger.New("led"))
	if err != nil {
		return nil, nil, err
	}
	return l, func() {
		if err := l.Close(); err != nil {
			logger.Warn().Err(err).Msg("turn led off")
		}
	}, nil
}

// initOutputs creates the configured outputs; outputs without an interval use
// defaultInterval.
func initOutputs(cfg *config.Config, defaultInterval int, names []string) ([]outputEntry, error) {
	entries := make([]outputEntry, 0, len(cfg.Outputs))
	closeAll := func() {
		for _, e := range entries {
			_ = e.Out.Close()
		}
	}
	for i := range cfg.Outputs {
		oc := &cfg.Outputs[i]
		if oc.IntervalMs <= 0 {
			oc.IntervalMs = defaultInterval
		}
		var (
			out output.Output
			err error
		)
		switch strings.ToLower(oc.Type) {
		case "console":
			out = console.NewConsole()
		case "mqtt":
			var mc config.MQTTConfig
			if oc.MQTT != nil {
				mc = *oc.MQTT
			}
			out, err = mqtt.NewMQTT(mc, names)
		case "sqlite":
			if oc.SQLite == nil {
				err = errors.New("missing sqlite settings")
				break
			}
			out, err = sqlite.NewRecorder(*oc.SQLite, logger.New("sqlite"))
		default:
			err = fmt.Errorf("unknown output type %q", oc.Type)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("output %s: %w", oc.Type, err)
		}
		entries = append(entries, outputEntry{Type: oc.Type, IntervalMs: oc.IntervalMs, Out: out})
	}
	return entries, nil
}

func publishLoop(ctx context.Context, e outputEntry, tel *telemetry.Registry) error {
	ticker := time.NewTicker(time.Duration(e.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.Out.Publish(tel.Snapshot()); err != nil {
				if !failing {
					logger.Warn().Err(err).Str("output", e.Type).Msg("publish failed")
				}
				failing = true
				continue
			}
			failing = false
		}
	}
}
