package hud

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	skyTop      = mustHex("#3869F8")
	skyHorizon  = mustHex("#76E6FD")
	groundTop   = mustHex("#C88C30")
	groundDepth = mustHex("#984428")

	horizonLineColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	tapeColor        = color.NRGBA{R: 24, G: 24, B: 28, A: 255}
	tapeMarkerColor  = color.NRGBA{R: 255, G: 200, B: 0, A: 255}
	reticleColor     = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
	shadowColor      = color.NRGBA{A: 110}
	insetColor       = color.NRGBA{R: 0, G: 0, B: 0, A: 160}
	armColor         = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	textColor        = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	textBoxColor     = color.NRGBA{A: 150}
	warningColor     = color.NRGBA{R: 255, G: 60, B: 60, A: 255}

	clockwiseColor        = color.NRGBA{R: 255, G: 140, B: 0, A: 255}
	counterClockwiseColor = color.NRGBA{R: 0, G: 170, B: 255, A: 255}
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// MotorColor maps a motor command in [-1,1] to a fill color: green for
// forward, red for reverse, opacity equal to the magnitude.
func MotorColor(command float64) color.NRGBA {
	command = math.Max(-1, math.Min(1, command))
	a := uint8(math.Round(math.Abs(command) * 255))

	switch {
	case a == 0:
		return color.NRGBA{}
	case command > 0:
		return color.NRGBA{G: 255, A: a}
	default:
		return color.NRGBA{R: 255, A: a}
	}
}

// DirectionColor returns the stroke color for a spin direction.
func DirectionColor(direction int) color.NRGBA {
	if direction < 0 {
		return clockwiseColor
	}
	return counterClockwiseColor
}

// withAlpha scales the alpha of c by alpha in [0,1].
func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	alpha = math.Max(0, math.Min(1, alpha))
	c.A = uint8(math.Round(float64(c.A) * alpha))
	return c
}

// linearGradient is an image source whose color varies along the local Y
// axis of a transformed group. Pixels are mapped back through the inverse
// transform so the gradient rotates and translates with the group.
type linearGradient struct {
	inverse    Affine
	fromY, toY float64
	from, to   colorful.Color
}

func newLinearGradient(group Affine, fromY, toY float64, from, to colorful.Color) *linearGradient {
	return &linearGradient{
		inverse: group.Invert(),
		fromY:   fromY,
		toY:     toY,
		from:    from,
		to:      to,
	}
}

func (g *linearGradient) ColorModel() color.Model {
	return color.RGBAModel
}

func (g *linearGradient) Bounds() image.Rectangle {
	return image.Rect(-1e9, -1e9, 1e9, 1e9)
}

func (g *linearGradient) At(x, y int) color.Color {
	local := g.inverse.Apply(Point{float64(x) + 0.5, float64(y) + 0.5})

	t := 0.0
	if g.toY != g.fromY {
		t = (local.Y - g.fromY) / (g.toY - g.fromY)
	}
	t = math.Max(0, math.Min(1, t))

	r, gg, b := g.from.BlendRgb(g.to, t).Clamped().RGB255()
	return color.RGBA{R: r, G: gg, B: b, A: 0xff}
}
