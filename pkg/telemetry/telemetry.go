// Package telemetry exposes named, read-only variables grouped the way the
// flight log subsystem groups them, e.g. "rfid.value".
package telemetry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type Kind string

const (
	KindUint16 Kind = "uint16"
	KindUint32 Kind = "uint32"
)

var ErrDuplicate = errors.New("telemetry: variable already registered")

type variable struct {
	name string
	kind Kind
	read func() uint64
}

// Group holds the variables of one log group. Variables are getters only;
// nothing registered here can be written from outside.
type Group struct {
	name string
	reg  *Registry
}

type Registry struct {
	mu   sync.RWMutex
	vars map[string]variable
}

func NewRegistry() *Registry {
	return &Registry{vars: make(map[string]variable)}
}

func (r *Registry) Group(name string) *Group {
	return &Group{name: name, reg: r}
}

func (g *Group) AddUint16(name string, fn func() uint16) error {
	return g.reg.add(g.name+"."+name, KindUint16, func() uint64 { return uint64(fn()) })
}

func (g *Group) AddUint32(name string, fn func() uint32) error {
	return g.reg.add(g.name+"."+name, KindUint32, func() uint64 { return uint64(fn()) })
}

func (r *Registry) add(full string, kind Kind, read func() uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vars[full]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, full)
	}
	r.vars[full] = variable{name: full, kind: kind, read: read}
	return nil
}

// Has reports whether the full variable name is registered.
func (r *Registry) Has(full string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.vars[full]
	return ok
}

// Names returns the full names of all variables in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.vars))
	for n := range r.vars {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type Sample struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Value uint64 `json:"value"`
}

type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Samples   []Sample  `json:"samples"`
}

// Snapshot reads every variable once. Values come from independent getters
// and may belong to different producer ticks.
func (r *Registry) Snapshot() Snapshot {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Snapshot{Timestamp: time.Now(), Samples: make([]Sample, 0, len(names))}
	for _, n := range names {
		v, ok := r.vars[n]
		if !ok {
			continue
		}
		s.Samples = append(s.Samples, Sample{Name: n, Kind: v.kind, Value: v.read()})
	}
	return s
}

func (s Snapshot) Get(name string) (uint64, bool) {
	for _, smp := range s.Samples {
		if smp.Name == name {
			return smp.Value, true
		}
	}
	return 0, false
}
