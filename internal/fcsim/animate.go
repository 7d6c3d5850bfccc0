package fcsim

import (
	"context"
	"math"
	"time"

	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

// Animate drives the reported state along slow sine sweeps until ctx is done,
// so a connected client has something to draw without hardware.
func (s *Server) Animate(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SetState(SweepState(now.Sub(start)))
		}
	}
}

// SweepState returns the simulated state at elapsed time t.
func SweepState(t time.Duration) telemetry.Sample {
	sec := t.Seconds()
	deg := math.Pi / 180

	roll := 25 * deg * math.Sin(sec*0.7)
	pitch := 15 * deg * math.Sin(sec*0.4)
	yaw := math.Mod(sec*20, 360) * deg

	s := telemetry.Sample{
		MeasuredRoll:     roll,
		MeasuredPitch:    pitch,
		MeasuredYaw:      yaw,
		CommandedRoll:    roll + 5*deg*math.Sin(sec*1.3),
		CommandedPitch:   pitch + 3*deg*math.Cos(sec*1.1),
		Throttle:         0.5 + 0.3*math.Sin(sec*0.2),
		FlightStatus:     telemetry.FlightStatusFlying,
		HasFlightStatus:  true,
		HardwareFlags:    telemetry.HardwareMPUOK | telemetry.HardwareRCOK,
		HasHardwareFlags: true,
		PitchError:       3 * deg * math.Cos(sec*1.1),
		RollError:        5 * deg * math.Sin(sec*1.3),
	}
	s.Armed = true

	for i := 0; i < 4; i++ {
		s.MotorCommand[i] = math.Sin(sec*0.5 + float64(i)*math.Pi/2)
	}

	return s
}
