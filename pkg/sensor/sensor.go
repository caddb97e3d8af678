package sensor

import "errors"

// FullScale is the top of the nominal 12-bit reading range.
const FullScale = 4095

var ErrPinNotFound = errors.New("sensor: pin not found")

// Sensor returns raw proximity readings in [0, FullScale].
type Sensor interface {
	Read() (uint16, error)
	Close() error
}
