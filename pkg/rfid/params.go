package rfid

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Tuned on the bench: background reads about 200, directly on the landing pad
// reads over 3500.
const (
	DefaultMaxStrength     = 4000
	DefaultBasePeriod      = 50 * time.Millisecond
	DefaultLandedThreshold = 3500
	DefaultDelay           = 1000 * time.Millisecond
	DefaultMaxDelay        = 2000 * time.Millisecond
	DefaultPollPeriod      = 10 * time.Millisecond
	DefaultStartupWait     = 250 * time.Millisecond
)

var ErrInvalidParams = errors.New("rfid: invalid params")

type Params struct {
	// MaxStrength is the reading treated as full signal strength.
	MaxStrength uint16
	// BasePeriod is the indicator delay at full strength.
	BasePeriod      time.Duration
	LandedThreshold uint16
	// DefaultDelay is the indicator delay before the first sample.
	DefaultDelay time.Duration
	// MaxDelay caps the indicator delay, including the zero-reading case.
	MaxDelay    time.Duration
	PollPeriod  time.Duration
	StartupWait time.Duration
}

func DefaultParams() Params {
	return Params{
		MaxStrength:     DefaultMaxStrength,
		BasePeriod:      DefaultBasePeriod,
		LandedThreshold: DefaultLandedThreshold,
		DefaultDelay:    DefaultDelay,
		MaxDelay:        DefaultMaxDelay,
		PollPeriod:      DefaultPollPeriod,
		StartupWait:     DefaultStartupWait,
	}
}

func (p Params) Validate() error {
	switch {
	case p.MaxStrength == 0:
		return fmt.Errorf("%w: max strength must be > 0", ErrInvalidParams)
	case p.BasePeriod < time.Millisecond:
		return fmt.Errorf("%w: base period must be >= 1ms", ErrInvalidParams)
	case p.DefaultDelay <= 0:
		return fmt.Errorf("%w: default delay must be > 0", ErrInvalidParams)
	case p.MaxDelay < p.BasePeriod:
		return fmt.Errorf("%w: max delay %s below base period %s", ErrInvalidParams, p.MaxDelay, p.BasePeriod)
	case p.PollPeriod <= 0:
		return fmt.Errorf("%w: poll period must be > 0", ErrInvalidParams)
	case p.StartupWait < 0:
		return fmt.Errorf("%w: startup wait must be >= 0", ErrInvalidParams)
	}
	return nil
}

// Landed reports whether the sensor sits directly over the target.
func (p Params) Landed(raw uint16) bool {
	return raw > p.LandedThreshold
}

// Delay maps a reading to the indicator delay: BasePeriod divided by the
// unclamped strength proportion raw/MaxStrength, rounded to whole
// milliseconds. The result lies in [1ms, MaxDelay]; a zero reading yields
// MaxDelay.
func (p Params) Delay(raw uint16) time.Duration {
	if raw == 0 {
		return p.MaxDelay
	}
	proportion := float64(raw) / float64(p.MaxStrength)
	ms := math.Round(float64(p.BasePeriod) / float64(time.Millisecond) / proportion)
	if ms >= float64(p.MaxDelay/time.Millisecond) {
		return p.MaxDelay
	}
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}
