package rfid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayScenarios(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		raw  uint16
		want time.Duration
	}{
		{4000, 50 * time.Millisecond},
		{200, 1000 * time.Millisecond},
		{2000, 100 * time.Millisecond},
		{4095, 49 * time.Millisecond},
		{math.MaxUint16, 3 * time.Millisecond},
		{0, DefaultMaxDelay},
		{1, DefaultMaxDelay},
		{100, DefaultMaxDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.raw), "raw=%d", tt.raw)
	}
}

func TestDelayPositiveAndMonotonic(t *testing.T) {
	p := DefaultParams()
	prev := p.Delay(0)
	assert.Positive(t, prev)
	for raw := 1; raw <= math.MaxUint16; raw++ {
		d := p.Delay(uint16(raw))
		if d <= 0 || d > p.MaxDelay {
			t.Fatalf("delay(%d) = %s out of range", raw, d)
		}
		if d > prev {
			t.Fatalf("delay(%d) = %s > delay(%d) = %s", raw, d, raw-1, prev)
		}
		prev = d
	}
}

func TestDelayNeverBelowOneMillisecond(t *testing.T) {
	p := DefaultParams()
	p.BasePeriod = time.Millisecond
	p.MaxStrength = 1
	assert.Equal(t, time.Millisecond, p.Delay(math.MaxUint16))
}

func TestLanded(t *testing.T) {
	p := DefaultParams()
	assert.False(t, p.Landed(0))
	assert.False(t, p.Landed(3500))
	assert.True(t, p.Landed(3501))
	assert.True(t, p.Landed(3600))

	p.LandedThreshold = 100
	assert.True(t, p.Landed(101))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	mutate := []func(*Params){
		func(p *Params) { p.MaxStrength = 0 },
		func(p *Params) { p.BasePeriod = 0 },
		func(p *Params) { p.DefaultDelay = 0 },
		func(p *Params) { p.MaxDelay = p.BasePeriod - time.Millisecond },
		func(p *Params) { p.PollPeriod = 0 },
		func(p *Params) { p.StartupWait = -time.Second },
	}
	for i, m := range mutate {
		p := DefaultParams()
		m(&p)
		assert.ErrorIs(t, p.Validate(), ErrInvalidParams, "case %d", i)
	}
}
