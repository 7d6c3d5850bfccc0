package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	FrameState   = "state"
	FrameHello   = "hello"
	FrameGoodbye = "goodbye"
	FrameEcho    = "echo"

	// RequestState asks the flight controller for the next state frame.
	RequestState = "state"

	// WebSocketPath is where the flight controller serves the telemetry socket.
	WebSocketPath = "/ws"

	commandPrefix = "command "
)

// CommandMessage wraps free-form operator text into an outbound command token.
func CommandMessage(text string) string {
	return commandPrefix + text
}

// DecodeError is returned for inbound frames that cannot be decoded.
type DecodeError struct {
	msg string
	err error
}

func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("decoding frame: %s: %s", e.msg, e.err)
	}
	return "decoding frame: " + e.msg
}

func (e *DecodeError) Unwrap() error {
	return e.err
}

// Message is a decoded inbound frame. Sample is set only for state frames.
type Message struct {
	Type   string
	Sample *Sample
	Echo   string
}

// frame is the wire representation; keys are abbreviated by the firmware.
type frame struct {
	Type string `json:"type"`

	MR *float64 `json:"mr,omitempty"`
	MP *float64 `json:"mp,omitempty"`
	MY *float64 `json:"my,omitempty"`

	RR *float64 `json:"rr,omitempty"`
	RP *float64 `json:"rp,omitempty"`
	RY *float64 `json:"ry,omitempty"`
	RT *float64 `json:"rt,omitempty"`

	A  *bool    `json:"a,omitempty"`
	FS *int     `json:"fs,omitempty"`
	HF *uint32  `json:"hf,omitempty"`
	EP *float64 `json:"ep,omitempty"`
	ER *float64 `json:"er,omitempty"`

	M1 *float64 `json:"m1,omitempty"`
	M2 *float64 `json:"m2,omitempty"`
	M3 *float64 `json:"m3,omitempty"`
	M4 *float64 `json:"m4,omitempty"`
	M5 *float64 `json:"m5,omitempty"`
	M6 *float64 `json:"m6,omitempty"`

	D *string `json:"d,omitempty"`
}

// Decode parses one inbound frame. Frames of unknown type decode into a
// Message without a sample; callers ignore them.
func Decode(data []byte) (*Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{msg: "invalid json", err: err}
	}
	if f.Type == "" {
		return nil, &DecodeError{msg: "missing type"}
	}

	msg := &Message{Type: f.Type}
	switch f.Type {
	case FrameState:
		s, err := f.sample()
		if err != nil {
			return nil, err
		}
		msg.Sample = s

	case FrameEcho:
		if f.D != nil {
			msg.Echo = *f.D
		}
	}

	return msg, nil
}

func (f *frame) sample() (*Sample, error) {
	if f.MR == nil || f.MP == nil || f.MY == nil {
		return nil, &DecodeError{msg: "state frame without measured attitude"}
	}

	s := Sample{
		MeasuredRoll:   *f.MR,
		MeasuredPitch:  *f.MP,
		MeasuredYaw:    *f.MY,
		CommandedRoll:  value(f.RR),
		CommandedPitch: value(f.RP),
		CommandedYaw:   value(f.RY),
		Throttle:       value(f.RT),
		PitchError:     value(f.EP),
		RollError:      value(f.ER),
	}

	if f.FS != nil {
		status := FlightStatus(*f.FS)
		if status < FlightStatusDisarmed || status > FlightStatusFlying {
			return nil, &DecodeError{msg: fmt.Sprintf("unknown flight status %d", *f.FS)}
		}
		s.FlightStatus = status
		s.HasFlightStatus = true
		s.Armed = status != FlightStatusDisarmed
	} else if f.A != nil {
		s.Armed = *f.A
	}

	if f.HF != nil {
		s.HardwareFlags = HardwareFlags(*f.HF)
		s.HasHardwareFlags = true
	}

	for i, m := range []*float64{f.M1, f.M2, f.M3, f.M4, f.M5, f.M6} {
		s.MotorCommand[i] = value(m)
	}

	return &s, nil
}

// Encode renders a sample as a state frame. Legacy frames carry the armed
// boolean of the earliest protocol variant and nothing newer.
func Encode(s *Sample, legacy bool) ([]byte, error) {
	if s == nil {
		return nil, errors.New("encoding frame: nil sample")
	}

	f := frame{
		Type: FrameState,
		MR:   ptr(s.MeasuredRoll),
		MP:   ptr(s.MeasuredPitch),
		MY:   ptr(s.MeasuredYaw),
		RR:   ptr(s.CommandedRoll),
		RP:   ptr(s.CommandedPitch),
		RY:   ptr(s.CommandedYaw),
		RT:   ptr(s.Throttle),
	}

	if legacy {
		f.A = ptr(s.IsArmed())
	} else {
		f.FS = ptr(int(s.FlightStatus))
		f.HF = ptr(uint32(s.HardwareFlags))
		f.EP = ptr(s.PitchError)
		f.ER = ptr(s.RollError)
		f.M1 = ptr(s.MotorCommand[0])
		f.M2 = ptr(s.MotorCommand[1])
		f.M3 = ptr(s.MotorCommand[2])
		f.M4 = ptr(s.MotorCommand[3])
		f.M5 = ptr(s.MotorCommand[4])
		f.M6 = ptr(s.MotorCommand[5])
	}

	return json.Marshal(&f)
}

// EncodeNotice renders a hello, goodbye or echo frame.
func EncodeNotice(frameType, data string) ([]byte, error) {
	f := frame{Type: frameType}
	if data != "" {
		f.D = &data
	}
	return json.Marshal(&f)
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}
