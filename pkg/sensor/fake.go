package sensor

import (
	"math/rand"
	"sync"
)

const (
	fakeBackground = 200
	fakePeak       = 3600
	fakeJitter     = 40
)

// FakeSensor simulates repeated approaches to the landing pad: the reading
// ramps from background up to above the landed threshold and back, over
// cycle reads, with a little noise.
type FakeSensor struct {
	mu    sync.Mutex
	rng   *rand.Rand
	cycle int
	step  int
}

func NewFakeSensor(cycle int, seed int64) (Sensor, error) {
	if cycle < 2 {
		cycle = 2
	}
	return &FakeSensor{rng: rand.New(rand.NewSource(seed)), cycle: cycle}, nil
}

func (f *FakeSensor) Read() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	half := f.cycle / 2
	pos := f.step % f.cycle
	if pos > half {
		pos = f.cycle - pos
	}
	f.step++
	v := fakeBackground + (fakePeak-fakeBackground)*pos/half
	v += f.rng.Intn(2*fakeJitter+1) - fakeJitter
	if v < 0 {
		v = 0
	}
	if v > FullScale {
		v = FullScale
	}
	return uint16(v), nil
}

func (f *FakeSensor) Close() error { return nil }
