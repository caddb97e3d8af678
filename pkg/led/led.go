// Package led provides indicator LED outputs.
package led

import "errors"

var ErrPinNotFound = errors.New("led: pin not found")

// LED sets an indicator on or off. Implementations never fail; hardware errors
// are logged.
type LED interface {
	Set(on bool)
}
