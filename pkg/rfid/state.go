package rfid

import (
	"sync/atomic"
	"time"
)

// State is the block shared by the sampler, the indicator and telemetry. Each
// field has a single writer; readers may see values from different ticks.
type State struct {
	value atomic.Uint32 // written by Sampler
	delay atomic.Int64  // written by Sampler, nanoseconds
}

func NewState(p Params) *State {
	st := &State{}
	st.setDelay(p.DefaultDelay)
	return st
}

// Value returns the last raw reading.
func (s *State) Value() uint16 { return uint16(s.value.Load()) }

// Delay returns the current indicator delay.
func (s *State) Delay() time.Duration { return time.Duration(s.delay.Load()) }

// DelayMS is Delay in whole milliseconds, for telemetry.
func (s *State) DelayMS() uint32 { return uint32(s.Delay() / time.Millisecond) }

func (s *State) setValue(v uint16)        { s.value.Store(uint32(v)) }
func (s *State) setDelay(d time.Duration) { s.delay.Store(int64(d)) }
