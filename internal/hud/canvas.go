package hud

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

const circleSegments = 48

// canvas paints anti-aliased paths onto an RGBA surface.
type canvas struct {
	img *image.RGBA
	ras *vector.Rasterizer
}

func newCanvas(img *image.RGBA) *canvas {
	size := img.Bounds().Size()
	return &canvas{
		img: img,
		ras: vector.NewRasterizer(size.X, size.Y),
	}
}

func (c *canvas) clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// fill rasterizes closed contours with the non-zero rule and composites src
// over the surface. Opposite windings cut holes.
func (c *canvas) fill(contours [][]Point, src image.Image) {
	bounds := c.img.Bounds()
	c.ras.Reset(bounds.Dx(), bounds.Dy())
	c.ras.DrawOp = draw.Over

	drawn := false
	for _, pts := range contours {
		if len(pts) < 3 {
			continue
		}
		c.ras.MoveTo(float32(pts[0].X-float64(bounds.Min.X)), float32(pts[0].Y-float64(bounds.Min.Y)))
		for _, p := range pts[1:] {
			c.ras.LineTo(float32(p.X-float64(bounds.Min.X)), float32(p.Y-float64(bounds.Min.Y)))
		}
		c.ras.ClosePath()
		drawn = true
	}

	if drawn {
		c.ras.Draw(c.img, bounds, src, bounds.Min)
	}
}

func (c *canvas) fillPolygon(pts []Point, col color.Color) {
	c.fill([][]Point{pts}, image.NewUniform(col))
}

func (c *canvas) fillRect(min, max Point, col color.Color) {
	c.fillPolygon([]Point{min, {max.X, min.Y}, max, {min.X, max.Y}}, col)
}

func (c *canvas) strokeLine(a, b Point, width float64, col color.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}

	nx, ny := -dy/length*width/2, dx/length*width/2
	c.fillPolygon([]Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}, col)
}

func (c *canvas) fillCircle(center Point, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	c.fillPolygon(circle(center, radius, false), col)
}

func (c *canvas) strokeCircle(center Point, radius, width float64, col color.Color) {
	outer := radius + width/2
	inner := radius - width/2
	if inner <= 0 {
		c.fillCircle(center, outer, col)
		return
	}
	c.fill([][]Point{circle(center, outer, false), circle(center, inner, true)}, image.NewUniform(col))
}

func circle(center Point, radius float64, reverse bool) []Point {
	pts := make([]Point, circleSegments)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			theta = -theta
		}
		sin, cos := math.Sincos(theta)
		pts[i] = Point{center.X + radius*cos, center.Y + radius*sin}
	}
	return pts
}
