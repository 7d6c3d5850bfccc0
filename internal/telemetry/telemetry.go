package telemetry

import "strings"

// NumMotorSlots is the number of motor command fields carried by a state frame.
const NumMotorSlots = 6

const (
	FlightStatusDisarmed FlightStatus = iota
	FlightStatusArming
	FlightStatusLanded
	FlightStatusFlying
)

// FlightStatus is the flight controller state machine phase.
type FlightStatus int

func (s FlightStatus) String() string {
	switch s {
	case FlightStatusDisarmed:
		return "Disarmed"
	case FlightStatusArming:
		return "Arming"
	case FlightStatusLanded:
		return "Landed"
	case FlightStatusFlying:
		return "Flying"
	default:
		return "Unknown"
	}
}

const (
	HardwareMPUOK HardwareFlags = 0x00000001
	HardwareRCOK  HardwareFlags = 0x00000002
)

// HardwareFlags reports sensor and link health. A cleared flag is an active fault.
type HardwareFlags uint32

// Has reports whether every bit of flag is set.
func (f HardwareFlags) Has(flag HardwareFlags) bool {
	return f&flag == flag
}

// Faults returns the names of the known flags that are not set.
func (f HardwareFlags) Faults() []string {
	var faults []string
	if !f.Has(HardwareMPUOK) {
		faults = append(faults, "NO MPU")
	}
	if !f.Has(HardwareRCOK) {
		faults = append(faults, "NO RC")
	}
	return faults
}

func (f HardwareFlags) String() string {
	faults := f.Faults()
	if len(faults) == 0 {
		return "OK"
	}
	return strings.Join(faults, ", ")
}

// Sample is one decoded telemetry snapshot. All angles are wire-native radians;
// conversion to degrees belongs to the rendering layer.
type Sample struct {
	MeasuredRoll  float64 // Measured roll in radians
	MeasuredPitch float64 // Measured pitch in radians
	MeasuredYaw   float64 // Measured yaw in radians

	CommandedRoll  float64 // Target roll in radians
	CommandedPitch float64 // Target pitch in radians
	CommandedYaw   float64 // Commanded yaw stick, wire-native units
	Throttle       float64 // Throttle in [0,1]

	// Armed is set by the earliest protocol variant. Later frames carry
	// FlightStatus instead and leave Armed derived from it.
	Armed           bool
	FlightStatus    FlightStatus
	HasFlightStatus bool

	HardwareFlags    HardwareFlags
	HasHardwareFlags bool

	PitchError float64 // Controller pitch tracking error in radians
	RollError  float64 // Controller roll tracking error in radians

	MotorCommand [NumMotorSlots]float64 // Per-motor command in [-1,1], index 0 is motor 1
}

// IsArmed reports the armed state regardless of the protocol variant.
func (s *Sample) IsArmed() bool {
	if s.HasFlightStatus {
		return s.FlightStatus != FlightStatusDisarmed
	}
	return s.Armed
}

// Motor returns the command for the 1-based motor index, zero when out of range.
func (s *Sample) Motor(index int) float64 {
	if index < 1 || index > NumMotorSlots {
		return 0
	}
	return s.MotorCommand[index-1]
}
