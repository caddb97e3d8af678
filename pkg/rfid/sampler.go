package rfid

// Reader is the sampling primitive: one synchronous, infallible read of the
// analog channel.
type Reader interface {
	Read() uint16
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() uint16

func (f ReaderFunc) Read() uint16 { return f() }

// Sampler reads the proximity signal and derives the indicator delay.
type Sampler struct {
	st     *State
	in     Reader
	params Params
}

func NewSampler(st *State, in Reader, p Params) *Sampler {
	return &Sampler{st: st, in: in, params: p}
}

// Tick takes one sample. It is a pure function of the reading: an unchanged
// reading leaves the delay unchanged.
func (s *Sampler) Tick() {
	raw := s.in.Read()
	s.st.setValue(raw)
	s.st.setDelay(s.params.Delay(raw))
}
