package sensor

import (
	"fmt"
	"time"

	"github.com/ericogr/rfid-deck/pkg/config"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01
)

// conn is the part of i2c.Dev the sensor uses.
type conn interface {
	Tx(w, r []byte) error
}

// ADS1115Sensor samples one single-ended ADS1115 input and reports it in the
// 12-bit proximity range.
type ADS1115Sensor struct {
	dev        conn
	bus        i2c.BusCloser
	channel    int
	sampleRate int
	sleep      func(time.Duration)
}

func NewADS1115Sensor(cfg config.Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	dev := &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus}
	s := &ADS1115Sensor{dev: dev, bus: bus, channel: cfg.ADCChannel, sampleRate: cfg.SampleRate, sleep: time.Sleep}
	if _, _, err := s.configForChannel(s.channel, s.sampleRate); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return s, nil
}

func (s *ADS1115Sensor) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

func (s *ADS1115Sensor) Read() (uint16, error) {
	msb, lsb, err := s.configForChannel(s.channel, s.sampleRate)
	if err != nil {
		return 0, err
	}
	// write config, starting a single-shot conversion
	if err := s.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	s.sleep(conversionDelay(s.sampleRate))
	readBuf := make([]byte, 2)
	if err := s.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	return scaleRaw(int16(readBuf[0])<<8 | int16(readBuf[1])), nil
}

func conversionDelay(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		sampleRate = 128
	}
	return time.Duration(1000.0/float64(sampleRate)+1) * time.Millisecond
}

// scaleRaw maps the positive half of the 16-bit conversion onto [0, FullScale].
// Single-ended inputs never read meaningfully below ground.
func scaleRaw(raw int16) uint16 {
	if raw < 0 {
		return 0
	}
	return uint16(raw) >> 3
}

// dataRates maps samples per second to the DR field of the config register.
var dataRates = map[int]byte{8: 0x0, 16: 0x1, 32: 0x2, 64: 0x3, 128: 0x4, 250: 0x5, 475: 0x6, 860: 0x7}

const (
	cfgStartSingle = 0x8000
	cfgGain4V      = 0x1 << 9 // FS +-4.096V
	cfgSingleShot  = 1 << 8
	cfgCompOff     = 0x3
	muxSingleEnded = 0x4 // AINx vs GND, x added
	defaultRate    = 0x4
)

func (s *ADS1115Sensor) configForChannel(channel, sampleRate int) (byte, byte, error) {
	if channel < 0 || channel > 3 {
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	dr, ok := dataRates[sampleRate]
	if !ok {
		dr = defaultRate
	}
	reg := uint16(cfgStartSingle|cfgGain4V|cfgSingleShot|cfgCompOff) |
		uint16(muxSingleEnded+channel)<<12 |
		uint16(dr)<<5
	return byte(reg >> 8), byte(reg), nil
}
