// Package rfid drives the RFID proximity deck: it samples the analog
// proximity signal and turns it into a blink rate on an indicator LED, solid
// once the deck sits on the landing pad.
package rfid

import (
	"fmt"

	"github.com/ericogr/rfid-deck/pkg/deck"
	"github.com/ericogr/rfid-deck/pkg/scheduler"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
	"github.com/rs/zerolog"
)

const (
	VID      = 0x17
	PID      = 0x01
	Name     = "gmrRFID"
	UsedGPIO = deck.UsingTX2 | deck.UsingRX2

	// InputPin carries the analog proximity signal.
	InputPin = deck.UsingTX2

	PollTask      = "RFID Poll"
	IndicatorTask = "RFID Indicator"
	LogGroup      = "rfid"
)

type Options struct {
	Params    Params
	Reader    Reader
	LED       LED
	Scheduler *scheduler.Scheduler
	// Telemetry is optional.
	Telemetry *telemetry.Registry
	// ConfigureInput puts the named host pin into input mode. Optional.
	ConfigureInput func(pin string) error
	Log            zerolog.Logger
}

type Deck struct {
	opts      Options
	state     *State
	sampler   *Sampler
	indicator *Indicator
}

func New(opts Options) (*Deck, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.Reader == nil || opts.LED == nil || opts.Scheduler == nil {
		return nil, fmt.Errorf("%w: reader, led and scheduler are required", ErrInvalidParams)
	}
	st := NewState(opts.Params)
	return &Deck{
		opts:      opts,
		state:     st,
		sampler:   NewSampler(st, opts.Reader, opts.Params),
		indicator: NewIndicator(st, opts.LED, opts.Params),
	}, nil
}

func (d *Deck) State() *State { return d.state }

// Driver describes the deck to the host driver table.
func (d *Deck) Driver() deck.Driver {
	return deck.Driver{
		VID:      VID,
		PID:      PID,
		Name:     Name,
		UsedGPIO: UsedGPIO,
		Init:     d.init,
	}
}

// checkFree fails when a task or telemetry name is already taken, so that a
// failed init leaves nothing registered.
func (d *Deck) checkFree() error {
	for _, name := range []string{PollTask, IndicatorTask} {
		if d.opts.Scheduler.Has(name) {
			return fmt.Errorf("%w: %s", scheduler.ErrDuplicateTask, name)
		}
	}
	if d.opts.Telemetry == nil {
		return nil
	}
	for _, name := range []string{LogGroup + ".value", LogGroup + ".delay"} {
		if d.opts.Telemetry.Has(name) {
			return fmt.Errorf("%w: %s", telemetry.ErrDuplicate, name)
		}
	}
	return nil
}

func (d *Deck) init(info deck.Info) error {
	p := d.opts.Params
	if err := d.checkFree(); err != nil {
		return err
	}

	if pin := info.PinName(InputPin); pin != "" && d.opts.ConfigureInput != nil {
		// Plain input only. A pull-down makes the Lighthouse deck incompatible
		// and a pull-up could fry the Lighthouse FPGA sharing this pin.
		if err := d.opts.ConfigureInput(pin); err != nil {
			return fmt.Errorf("configure input %s: %w", pin, err)
		}
	}

	d.state.setDelay(p.DefaultDelay)

	if d.opts.Telemetry != nil {
		g := d.opts.Telemetry.Group(LogGroup)
		if err := g.AddUint16("value", d.state.Value); err != nil {
			return err
		}
		if err := g.AddUint32("delay", d.state.DelayMS); err != nil {
			return err
		}
	}

	if err := d.opts.Scheduler.Every(PollTask, p.PollPeriod, p.StartupWait, d.sampler.Tick); err != nil {
		return err
	}
	if err := d.opts.Scheduler.Adaptive(IndicatorTask, p.StartupWait, p.DefaultDelay, d.indicator.Fire); err != nil {
		return err
	}

	d.opts.Log.Info().
		Uint16("max_strength", p.MaxStrength).
		Uint16("landed_threshold", p.LandedThreshold).
		Dur("base_period", p.BasePeriod).
		Dur("poll_period", p.PollPeriod).
		Msg("rfid deck started")
	return nil
}
