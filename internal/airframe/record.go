package airframe

import (
	"fmt"
	"math"
	"sort"
)

const (
	// KeyNumMotors is the one key every configuration record carries.
	KeyNumMotors = "numMotors"

	// MaxMotors is the number of motor slots the airframe layout supports.
	MaxMotors = 6

	FieldX         = "x"
	FieldY         = "y"
	FieldDirection = "direction"
)

// MotorKey returns the configuration key of a motor field, e.g. "motor1.x".
// Motor indices are 1-based.
func MotorKey(index int, field string) string {
	return fmt.Sprintf("motor%d.%s", index, field)
}

// Motor is the physical placement of one motor.
type Motor struct {
	Index     int     // 1-based motor index
	X         float64 // Millimeters from the center of mass, positive right
	Y         float64 // Millimeters from the center of mass, positive forward
	Direction int     // +1 counter-clockwise, -1 clockwise
}

// Record is a flat configuration mapping of key to numeric value.
type Record map[string]float64

// NumMotors returns the active motor count clamped to [0, MaxMotors].
func (r Record) NumMotors() int {
	n := int(math.Round(r[KeyNumMotors]))
	if n < 0 {
		return 0
	}
	if n > MaxMotors {
		return MaxMotors
	}
	return n
}

// Motors returns the layout of every active motor. Missing keys read as zero,
// a missing or zero direction reads as counter-clockwise.
func (r Record) Motors() []Motor {
	n := r.NumMotors()
	motors := make([]Motor, 0, n)
	for i := 1; i <= n; i++ {
		dir := 1
		if r[MotorKey(i, FieldDirection)] < 0 {
			dir = -1
		}
		motors = append(motors, Motor{
			Index:     i,
			X:         r[MotorKey(i, FieldX)],
			Y:         r[MotorKey(i, FieldY)],
			Direction: dir,
		})
	}
	return motors
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Keys returns the record keys in lexical order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Modified returns the keys of current whose value differs from defaults, in
// lexical order. Keys without a default are reported as modified.
func Modified(current, defaults Record) []string {
	var keys []string
	for _, k := range current.Keys() {
		def, ok := defaults[k]
		if !ok || def != current[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
