package led

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestGPIOActiveHigh(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High}
	l, err := newGPIO(p, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, p.L, "starts off")

	l.Set(true)
	assert.Equal(t, gpio.High, p.L)
	l.Set(false)
	assert.Equal(t, gpio.Low, p.L)
}

func TestGPIOActiveLow(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO17", Num: 17}
	l, err := newGPIO(p, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, gpio.High, p.L, "starts off")

	l.Set(true)
	assert.Equal(t, gpio.Low, p.L)
	require.NoError(t, l.Close())
	assert.Equal(t, gpio.High, p.L)
}

func TestLogCountsChanges(t *testing.T) {
	l := NewLog(zerolog.Nop())
	for _, on := range []bool{false, true, true, false, true} {
		l.Set(on)
	}
	assert.True(t, l.On())
	assert.Equal(t, uint64(3), l.Changes())
}
