package led

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIO drives an LED wired to a host GPIO pin.
type GPIO struct {
	pin       gpio.PinOut
	activeLow bool
	log       zerolog.Logger
	failed    bool
}

func NewGPIO(name string, activeLow bool, log zerolog.Logger) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return newGPIO(p, activeLow, log)
}

func newGPIO(p gpio.PinOut, activeLow bool, log zerolog.Logger) (*GPIO, error) {
	l := &GPIO{pin: p, activeLow: activeLow, log: log}
	if err := p.Out(l.level(false)); err != nil {
		return nil, fmt.Errorf("set %s output: %w", p, err)
	}
	return l, nil
}

func (l *GPIO) level(on bool) gpio.Level {
	return gpio.Level(on != l.activeLow)
}

func (l *GPIO) Set(on bool) {
	if err := l.pin.Out(l.level(on)); err != nil {
		if !l.failed {
			l.log.Warn().Err(err).Stringer("pin", l.pin).Msg("led write failed")
		}
		l.failed = true
		return
	}
	l.failed = false
}

// Close turns the LED off.
func (l *GPIO) Close() error {
	return l.pin.Out(l.level(false))
}
