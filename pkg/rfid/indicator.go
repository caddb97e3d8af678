package rfid

import "time"

// LED is the output primitive the indicator drives.
type LED interface {
	Set(on bool)
}

// Indicator blinks the LED at the rate held in State and holds it solid once
// landed. Only the scheduler goroutine running Fire touches phase.
type Indicator struct {
	st     *State
	led    LED
	params Params
	phase  bool
}

func NewIndicator(st *State, led LED, p Params) *Indicator {
	return &Indicator{st: st, led: led, params: p}
}

// Fire produces one LED update and returns the wait before the next one, read
// from State at firing time.
func (i *Indicator) Fire() time.Duration {
	if i.params.Landed(i.st.Value()) {
		i.led.Set(true)
	} else {
		i.led.Set(i.phase)
		i.phase = !i.phase
	}
	return i.st.Delay()
}
