package hud

import "math"

// Point is a position in screen pixels, Y grows downwards.
type Point struct {
	X, Y float64
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Affine is a 2D affine transform in the canvas convention:
//
//	x' = A*x + C*y + E
//	y' = B*x + D*y + F
type Affine struct {
	A, B, C, D, E, F float64
}

// Identity is the transform that leaves points unchanged.
var Identity = Affine{A: 1, D: 1}

// Translate returns a translation by (dx, dy).
func Translate(dx, dy float64) Affine {
	return Affine{A: 1, D: 1, E: dx, F: dy}
}

// Rotate returns a rotation about the origin. Positive degrees turn clockwise
// on screen because Y points down.
func Rotate(deg float64) Affine {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// RotateAbout returns a rotation by deg about c.
func RotateAbout(deg float64, c Point) Affine {
	return Translate(c.X, c.Y).Then(Rotate(deg)).Then(Translate(-c.X, -c.Y))
}

// Then composes m with n so that n is applied to points first, matching the
// order of successive canvas transform calls.
func (m Affine) Then(n Affine) Affine {
	return Affine{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

// Apply transforms p.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse transform. A singular transform inverts to Identity.
func (m Affine) Invert() Affine {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity
	}
	return Affine{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
		E: (m.C*m.F - m.D*m.E) / det,
		F: (m.B*m.E - m.A*m.F) / det,
	}
}

func (m Affine) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = m.Apply(p)
	}
	return out
}
