package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ConfigureInput puts the named host pin into plain input mode, no pull and
// no edge detection.
func ConfigureInput(name string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return configureInput(p)
}

func configureInput(p gpio.PinIn) error {
	// The pin is shared with the Lighthouse deck: gpio.PullDown breaks it and
	// gpio.PullUp can damage its FPGA.
	if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("set %s input: %w", p, err)
	}
	return nil
}
