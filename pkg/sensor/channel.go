package sensor

import "github.com/rs/zerolog"

// Channel turns a Sensor into the infallible sampling primitive the deck
// expects. A failed read repeats the last good sample. Read must only be
// called from one goroutine.
type Channel struct {
	s      Sensor
	log    zerolog.Logger
	last   uint16
	failed bool
}

func NewChannel(s Sensor, log zerolog.Logger) *Channel {
	return &Channel{s: s, log: log}
}

func (c *Channel) Read() uint16 {
	v, err := c.s.Read()
	if err != nil {
		if !c.failed {
			c.log.Warn().Err(err).Uint16("holding", c.last).Msg("sensor read failed")
		}
		c.failed = true
		return c.last
	}
	if c.failed {
		c.log.Info().Msg("sensor read recovered")
		c.failed = false
	}
	c.last = v
	return v
}
