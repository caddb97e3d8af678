// Package deck keeps the table of expansion-deck drivers known to the host and
// initializes the one matching a discovered deck.
package deck

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Pin is a bit mask of deck connector pins.
type Pin uint32

const (
	UsingRX1 Pin = 1 << iota
	UsingTX1
	UsingSDA
	UsingSCL
	UsingIO1
	UsingIO2
	UsingIO3
	UsingIO4
	UsingTX2
	UsingRX2
	UsingSCK
	UsingMISO
	UsingMOSI
)

var pinNames = []string{"RX1", "TX1", "SDA", "SCL", "IO1", "IO2", "IO3", "IO4", "TX2", "RX2", "SCK", "MISO", "MOSI"}

func (p Pin) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	for i, name := range pinNames {
		if p&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

var (
	ErrUnknownDriver      = errors.New("deck: no driver for deck")
	ErrDuplicateDriver    = errors.New("deck: driver already registered")
	ErrPinConflict        = errors.New("deck: pin already in use")
	ErrAlreadyInitialized = errors.New("deck: driver already initialized")
	ErrInvalidDriver      = errors.New("deck: invalid driver")
)

// Info is what the host learned about a discovered deck. Pins maps connector
// pins to host pin names.
type Info struct {
	VID  uint8
	PID  uint8
	Pins map[Pin]string
}

// PinName returns the host name for a single connector pin.
func (i Info) PinName(p Pin) string {
	if i.Pins == nil {
		return ""
	}
	return i.Pins[p]
}

type Driver struct {
	VID      uint8
	PID      uint8
	Name     string
	UsedGPIO Pin
	// Init is called once, when a deck matching VID/PID is discovered.
	Init func(info Info) error
}

type Registry struct {
	log zerolog.Logger

	mu          sync.Mutex
	drivers     []Driver
	used        Pin
	initialized map[string]bool
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{log: log, initialized: make(map[string]bool)}
}

func (r *Registry) Register(d Driver) error {
	if d.Name == "" || d.Init == nil {
		return fmt.Errorf("%w: name and init are required", ErrInvalidDriver)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.drivers {
		if e.Name == d.Name || (e.VID == d.VID && e.PID == d.PID) {
			return fmt.Errorf("%w: %s (vid=0x%02X pid=0x%02X)", ErrDuplicateDriver, d.Name, d.VID, d.PID)
		}
	}
	r.drivers = append(r.drivers, d)
	r.log.Debug().Str("driver", d.Name).Stringer("pins", d.UsedGPIO).Msg("deck driver registered")
	return nil
}

// Drivers returns registered drivers sorted by name.
func (r *Registry) Drivers() []Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Driver, len(r.drivers))
	copy(out, r.drivers)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Discover initializes the driver matching info. A driver is initialized at
// most once and never while another initialized driver holds one of its pins.
func (r *Registry) Discover(info Info) (Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		d     Driver
		found bool
	)
	for _, e := range r.drivers {
		if e.VID == info.VID && e.PID == info.PID {
			d, found = e, true
			break
		}
	}
	if !found {
		return Driver{}, fmt.Errorf("%w: vid=0x%02X pid=0x%02X", ErrUnknownDriver, info.VID, info.PID)
	}
	if r.initialized[d.Name] {
		return d, fmt.Errorf("%w: %s", ErrAlreadyInitialized, d.Name)
	}
	if overlap := r.used & d.UsedGPIO; overlap != 0 {
		return d, fmt.Errorf("%w: %s needs %s", ErrPinConflict, d.Name, overlap)
	}
	if err := d.Init(info); err != nil {
		return d, fmt.Errorf("init %s: %w", d.Name, err)
	}
	r.initialized[d.Name] = true
	r.used |= d.UsedGPIO
	r.log.Info().Str("driver", d.Name).Stringer("pins", d.UsedGPIO).Msg("deck initialized")
	return d, nil
}
