package fcsim

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
)

type entry struct {
	key   string
	def   float64
	value float64
	isInt bool
}

// Registry is the in-memory configuration of the simulated controller. Values
// are typed int or float by their default; writes of the wrong type are
// refused. Nothing is persisted.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[string]*entry
}

// NewRegistry returns the default configuration: a 4-motor X frame with
// 80 mm arms and alternating spin directions.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]*entry)}

	r.register(airframe.KeyNumMotors, 4, true)
	quad := []airframe.Motor{
		{Index: 1, X: 80, Y: 80, Direction: -1},
		{Index: 2, X: -80, Y: -80, Direction: -1},
		{Index: 3, X: 80, Y: -80, Direction: 1},
		{Index: 4, X: -80, Y: 80, Direction: 1},
		{Index: 5, Direction: 1},
		{Index: 6, Direction: 1},
	}
	for _, m := range quad {
		r.register(airframe.MotorKey(m.Index, airframe.FieldX), m.X, false)
		r.register(airframe.MotorKey(m.Index, airframe.FieldY), m.Y, false)
		r.register(airframe.MotorKey(m.Index, airframe.FieldDirection), float64(m.Direction), true)
	}

	return r
}

func (r *Registry) register(key string, def float64, isInt bool) {
	if _, ok := r.index[key]; ok {
		panic(fmt.Sprintf("duplicate config key %q", key))
	}
	e := &entry{key: key, def: def, value: def, isInt: isInt}
	r.entries = append(r.entries, e)
	r.index[key] = e
}

// Values returns the current configuration.
func (r *Registry) Values() airframe.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := make(airframe.Record, len(r.entries))
	for _, e := range r.entries {
		rec[e.key] = e.value
	}
	return rec
}

// Defaults returns the factory configuration.
func (r *Registry) Defaults() airframe.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := make(airframe.Record, len(r.entries))
	for _, e := range r.entries {
		rec[e.key] = e.def
	}
	return rec
}

// SetString parses and stores a value. It reports false for unknown keys and
// values that do not match the key type.
func (r *Registry) SetString(key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[key]
	if !ok {
		return false
	}

	if e.isInt {
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return false
		}
		e.value = float64(v)
		return true
	}

	v, err := strconv.ParseFloat(value, 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	e.value = v
	return true
}

// Restore resets key to its default.
func (r *Registry) Restore(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[key]
	if !ok {
		return false
	}
	e.value = e.def
	return true
}
