package sensor

import (
	"errors"
	"testing"
	"time"
)

func TestConfigForChannelBytes(t *testing.T) {
	s := &ADS1115Sensor{}

	// channel 0, sample rate 128 -> expect msb 0xC3 lsb 0x83
	msb, lsb, err := s.configForChannel(0, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msb != 0xC3 || lsb != 0x83 {
		t.Fatalf("channel0@128 => got %02X %02X; want C3 83", msb, lsb)
	}

	// channel 1, sample rate 128 -> D3 83
	msb, lsb, err = s.configForChannel(1, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msb != 0xD3 || lsb != 0x83 {
		t.Fatalf("channel1@128 => got %02X %02X; want D3 83", msb, lsb)
	}

	// sample rate 8 for channel 0 -> msb C3 lsb 03 (dr=0)
	msb, lsb, err = s.configForChannel(0, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msb != 0xC3 || lsb != 0x03 {
		t.Fatalf("channel0@8 => got %02X %02X; want C3 03", msb, lsb)
	}

	// invalid channel
	_, _, err = s.configForChannel(9, 128)
	if err == nil {
		t.Fatalf("expected error for invalid channel")
	}
}

type fakeConn struct {
	writes [][]byte
	conv   []byte
	err    error
}

func (f *fakeConn) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, append([]byte(nil), w...))
	copy(r, f.conv)
	return nil
}

func TestReadScalesConversion(t *testing.T) {
	tests := []struct {
		conv []byte
		want uint16
	}{
		{[]byte{0x7F, 0xFF}, FullScale},
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x06, 0x40}, 200},
		{[]byte{0x80, 0x00}, 0}, // negative
	}
	for _, tt := range tests {
		c := &fakeConn{conv: tt.conv}
		var slept time.Duration
		s := &ADS1115Sensor{dev: c, channel: 0, sampleRate: 128, sleep: func(d time.Duration) { slept = d }}
		got, err := s.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != tt.want {
			t.Fatalf("conv %X => got %d want %d", tt.conv, got, tt.want)
		}
		if slept != 8*time.Millisecond {
			t.Fatalf("conversion wait: got %s", slept)
		}
		if len(c.writes) != 2 || c.writes[0][0] != pointerConfig || c.writes[1][0] != pointerConv {
			t.Fatalf("unexpected writes: %X", c.writes)
		}
	}
}

func TestReadPropagatesBusError(t *testing.T) {
	s := &ADS1115Sensor{dev: &fakeConn{err: errors.New("nack")}, sampleRate: 128, sleep: func(time.Duration) {}}
	if _, err := s.Read(); err == nil {
		t.Fatalf("expected bus error")
	}
}
