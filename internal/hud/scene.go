package hud

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

const (
	ProtocolV1 Protocol = 1 // horizon and reticle rotate by +roll
	ProtocolV2 Protocol = 2 // horizon and reticle rotate by -roll, pilot frame of reference
)

const (
	pitchHalfFOV      = 35.0 // degrees mapped onto half the viewport height
	pitchLadderRange  = 50
	pitchLadderStep   = 5
	pitchFadeDistance = 30.0

	yawHalfSpan     = 45.0 // degrees mapped onto half the viewport width
	yawWindow       = 110.0
	yawTickStep     = 5
	yawFadeDistance = 45.0

	ladderLengthRatio = 0.25

	motorScaleRatio  = 0.4
	motorRadiusRatio = 0.08
	motorEpsilon     = 1e-6

	defaultMotorInset   = 120.0
	defaultMotorPadding = 10.0
)

// Protocol selects the roll sign convention of a firmware revision.
type Protocol int

func (p Protocol) rollSign() float64 {
	if p == ProtocolV1 {
		return 1
	}
	return -1
}

// ParseProtocol accepts "v1" or "v2".
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "v1":
		return ProtocolV1, nil
	case "v2":
		return ProtocolV2, nil
	default:
		return 0, fmt.Errorf("unknown protocol '%s'", s)
	}
}

// Viewport is the size of the raster surface in pixels.
type Viewport struct {
	Width, Height int
}

func (v Viewport) Center() Point {
	return Point{float64(v.Width) / 2, float64(v.Height) / 2}
}

// SceneOptions holds scene parameters that do not come from telemetry.
type SceneOptions struct {
	Protocol     Protocol
	MotorInset   float64 // Side of the motor diagram square in pixels
	MotorPadding float64 // Padding inside the motor diagram square
}

// Scene is everything the renderer needs for one frame.
type Scene struct {
	Viewport Viewport
	Horizon  Horizon
	Ladder   []LadderRung
	Compass  Compass
	Reticle  Reticle
	Motors   MotorDiagram
	Readout  []ReadoutLine
}

// Horizon places the sky/ground group. The group is translated vertically by
// OffsetPx and then rotated by RotationDeg about the viewport center.
type Horizon struct {
	Center          Point
	RotationDeg     float64
	OffsetPx        float64
	PixelsPerDegree float64
}

// Transform maps horizon group coordinates to screen coordinates.
func (h Horizon) Transform() Affine {
	return RotateAbout(h.RotationDeg, h.Center).Then(Translate(0, h.OffsetPx))
}

// LadderRung is one pitch ladder line in horizon group coordinates.
type LadderRung struct {
	PitchDeg   int
	Y          float64
	HalfLength float64
	Label      string
	Alpha      float64
}

// Compass is the yaw tape. Tick X positions are in screen pixels.
type Compass struct {
	HeadingDeg      float64
	PixelsPerDegree float64
	Ticks           []CompassTick
}

type CompassTick struct {
	HeadingDeg int
	X          float64
	Major      bool
	Label      string
	Alpha      float64
}

// Reticle is the commanded attitude marker. Segments are in group coordinates
// and share the horizon transform semantics.
type Reticle struct {
	Center      Point
	RotationDeg float64
	OffsetPx    float64
	Segments    [][2]Point
	Width       float64
}

func (r Reticle) Transform() Affine {
	return RotateAbout(r.RotationDeg, r.Center).Then(Translate(0, r.OffsetPx))
}

// MotorDiagram is the airframe inset. Motor centers are relative to the
// inset's top-left corner; Origin places the inset on screen.
type MotorDiagram struct {
	Origin  Point
	Size    float64
	Padding float64
	Scale   float64
	Motors  []MotorMark
}

type MotorMark struct {
	Index     int
	Center    Point
	Radius    float64
	Command   float64
	Direction int
	Fill      color.NRGBA
	Stroke    color.NRGBA
}

// ReadoutLine is one line of the axis-aligned text readout.
type ReadoutLine struct {
	Text    string
	Warning bool
}

// BuildScene derives the render parameters for one frame. It is pure: the
// same inputs always produce the same scene. A nil sample renders as level
// attitude with nothing armed.
func BuildScene(sample *telemetry.Sample, config airframe.Record, vp Viewport, opts SceneOptions) Scene {
	if sample == nil {
		sample = &telemetry.Sample{}
	}
	if opts.Protocol == 0 {
		opts.Protocol = ProtocolV2
	}
	if opts.MotorInset <= 0 {
		opts.MotorInset = defaultMotorInset
	}
	if opts.MotorPadding < 0 || opts.MotorPadding*2 >= opts.MotorInset {
		opts.MotorPadding = defaultMotorPadding
	}

	rollDeg := Degrees(sample.MeasuredRoll)
	pitchDeg := Degrees(sample.MeasuredPitch)
	headingDeg := WrapDegrees(Degrees(sample.MeasuredYaw))

	center := vp.Center()
	pitchPPD := (float64(vp.Height) / 2) / pitchHalfFOV

	horizon := Horizon{
		Center:          center,
		RotationDeg:     opts.Protocol.rollSign() * rollDeg,
		OffsetPx:        pitchDeg * pitchPPD,
		PixelsPerDegree: pitchPPD,
	}

	return Scene{
		Viewport: vp,
		Horizon:  horizon,
		Ladder:   buildLadder(pitchDeg, center, pitchPPD, float64(vp.Width)),
		Compass:  buildCompass(headingDeg, center, float64(vp.Width)),
		Reticle:  buildReticle(sample, center, pitchPPD, vp, opts.Protocol),
		Motors:   buildMotorDiagram(sample, config, vp, opts.MotorInset, opts.MotorPadding),
		Readout:  buildReadout(sample, rollDeg, pitchDeg, headingDeg),
	}
}

// Degrees converts wire radians to display degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// WrapDegrees maps any angle into [0, 360).
func WrapDegrees(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w < 0 {
		w += 360
	}
	if w >= 360 {
		w = 0
	}
	return w
}

// AngularDistance returns the shortest distance between two headings, in [0, 180].
func AngularDistance(a, b float64) float64 {
	d := WrapDegrees(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// PitchAlpha is the opacity of the ladder rung at rungDeg for the current pitch.
func PitchAlpha(pitchDeg, rungDeg float64) float64 {
	return fade(math.Abs(pitchDeg-rungDeg), pitchFadeDistance)
}

// YawAlpha is the opacity of the compass tick at tickDeg for the current heading.
func YawAlpha(headingDeg, tickDeg float64) float64 {
	return fade(AngularDistance(headingDeg, tickDeg), yawFadeDistance)
}

func fade(distance, limit float64) float64 {
	return 1 - math.Max(0, math.Min(1, distance/limit))
}

var compassPoints = map[int]string{
	0:   "N",
	45:  "NE",
	90:  "E",
	135: "SE",
	180: "S",
	225: "SW",
	270: "W",
	315: "NW",
}

// CompassLabel returns the tape label of a heading: a compass point at
// multiples of 45, the degree number at other multiples of 10, otherwise none.
func CompassLabel(deg int) string {
	deg = ((deg % 360) + 360) % 360
	if p, ok := compassPoints[deg]; ok {
		return p
	}
	if deg%10 == 0 {
		return strconv.Itoa(deg)
	}
	return ""
}

func buildLadder(pitchDeg float64, center Point, ppd, width float64) []LadderRung {
	longHalf := width * ladderLengthRatio / 2

	rungs := make([]LadderRung, 0, 2*pitchLadderRange/pitchLadderStep+1)
	for i := -pitchLadderRange; i <= pitchLadderRange; i += pitchLadderStep {
		rung := LadderRung{
			PitchDeg:   i,
			Y:          center.Y - float64(i)*ppd,
			HalfLength: longHalf / 2,
			Alpha:      PitchAlpha(pitchDeg, float64(i)),
		}
		if i%10 == 0 {
			rung.HalfLength = longHalf
			rung.Label = strconv.Itoa(i) + "°"
		}
		rungs = append(rungs, rung)
	}
	return rungs
}

func buildCompass(headingDeg float64, center Point, width float64) Compass {
	ppd := (width / 2) / yawHalfSpan

	c := Compass{
		HeadingDeg:      headingDeg,
		PixelsPerDegree: ppd,
	}

	first := int(math.Ceil((headingDeg-yawWindow)/yawTickStep)) * yawTickStep
	for d := first; float64(d) <= headingDeg+yawWindow; d += yawTickStep {
		wrapped := int(WrapDegrees(float64(d)))
		c.Ticks = append(c.Ticks, CompassTick{
			HeadingDeg: wrapped,
			X:          center.X + (float64(d)-headingDeg)*ppd,
			Major:      wrapped%10 == 0 || wrapped%45 == 0,
			Label:      CompassLabel(wrapped),
			Alpha:      YawAlpha(headingDeg, float64(d)),
		})
	}
	return c
}

func buildReticle(sample *telemetry.Sample, center Point, ppd float64, vp Viewport, protocol Protocol) Reticle {
	w := float64(vp.Width)
	h := float64(vp.Height)

	outer, inner, drop := w*0.30, w*0.10, h*0.04
	segments := [][2]Point{
		{{center.X - outer, center.Y}, {center.X - inner, center.Y}},
		{{center.X - inner, center.Y}, {center.X - inner, center.Y + drop}},
		{{center.X + inner, center.Y}, {center.X + outer, center.Y}},
		{{center.X + inner, center.Y}, {center.X + inner, center.Y + drop}},
	}

	return Reticle{
		Center:      center,
		RotationDeg: protocol.rollSign() * Degrees(sample.CommandedRoll),
		OffsetPx:    Degrees(sample.CommandedPitch) * ppd,
		Segments:    segments,
		Width:       math.Max(2, h/100),
	}
}

// MotorScale returns the millimeter to pixel scale that fits the motor
// farthest from the center inside the padded square. It reports false when
// every offset is effectively zero.
func MotorScale(motors []airframe.Motor, size, padding float64) (float64, bool) {
	var maxX, maxY float64
	for _, m := range motors {
		maxX = math.Max(maxX, math.Abs(m.X))
		maxY = math.Max(maxY, math.Abs(m.Y))
	}

	inner := size - 2*padding
	scale := math.Inf(1)
	if maxX > motorEpsilon {
		scale = math.Min(scale, motorScaleRatio*inner/maxX)
	}
	if maxY > motorEpsilon {
		scale = math.Min(scale, motorScaleRatio*inner/maxY)
	}
	if math.IsInf(scale, 1) {
		return 0, false
	}
	return scale, true
}

func buildMotorDiagram(sample *telemetry.Sample, config airframe.Record, vp Viewport, size, padding float64) MotorDiagram {
	d := MotorDiagram{
		Origin:  Point{float64(vp.Width) - size, float64(vp.Height) - size},
		Size:    size,
		Padding: padding,
	}

	motors := config.Motors()
	scale, ok := MotorScale(motors, size, padding)
	if !ok {
		return d
	}
	d.Scale = scale

	mid := size / 2
	radius := motorRadiusRatio * (size - 2*padding)
	for _, m := range motors {
		cmd := sample.Motor(m.Index)

		// stored Y points forward, screen Y points down
		center := Point{mid + m.X*scale, mid - m.Y*scale}

		d.Motors = append(d.Motors, MotorMark{
			Index:     m.Index,
			Center:    center,
			Radius:    radius,
			Command:   cmd,
			Direction: m.Direction,
			Fill:      MotorColor(cmd),
			Stroke:    DirectionColor(m.Direction),
		})
	}
	return d
}

func buildReadout(sample *telemetry.Sample, rollDeg, pitchDeg, headingDeg float64) []ReadoutLine {
	lines := []ReadoutLine{
		{Text: "Roll: " + formatDegrees(rollDeg)},
		{Text: "Pitch: " + formatDegrees(pitchDeg)},
		{Text: "Yaw: " + formatDegrees(headingDeg)},
		{Text: "Throttle: " + humanize.FtoaWithDigits(sample.Throttle*100, 1) + "%"},
	}

	if sample.HasFlightStatus {
		lines = append(lines, ReadoutLine{Text: "Status: " + sample.FlightStatus.String()})
	} else {
		armed := "No"
		if sample.Armed {
			armed = "Yes"
		}
		lines = append(lines, ReadoutLine{Text: "Armed: " + armed})
	}

	if sample.HasHardwareFlags {
		if faults := sample.HardwareFlags.Faults(); len(faults) > 0 {
			lines = append(lines, ReadoutLine{Text: strings.Join(faults, " "), Warning: true})
		}
		lines = append(lines, ReadoutLine{
			Text: fmt.Sprintf("Err P: %s R: %s", formatDegrees(Degrees(sample.PitchError)), formatDegrees(Degrees(sample.RollError))),
		})
	}

	return lines
}

func formatDegrees(deg float64) string {
	return humanize.FtoaWithDigits(deg, 1) + "°"
}
