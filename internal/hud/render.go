package hud

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi             = 72.0
	defaultFontSize = 12.0

	horizonLineWidth = 2.0
	ladderLineWidth  = 1.5
	tickLineWidth    = 1.5
	armLineWidth     = 2.0
	motorStrokeWidth = 2.0

	shadowOffset   = 2.0
	readoutMargin  = 10
	textBoxPadding = 3
)

// RenderConfig holds renderer options
type RenderConfig struct {
	FontSize float64 // Font size in points
}

// Renderer paints a Scene onto a raster surface. Every call repaints the
// whole surface from scratch. A Renderer must not be used from more than one
// goroutine at a time.
type Renderer struct {
	config   RenderConfig
	context  *freetype.Context
	fontFace font.Face
	ascent   int
	lineH    int
}

// NewRenderer creates a renderer using the bundled Go Regular font
func NewRenderer(config RenderConfig) (*Renderer, error) {
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)

	face := truetype.NewFace(parsedFont, &truetype.Options{
		Size:    config.FontSize,
		DPI:     dpi,
		Hinting: font.HintingNone,
	})
	metrics := face.Metrics()

	return &Renderer{
		config:   config,
		context:  ctx,
		fontFace: face,
		ascent:   metrics.Ascent.Round(),
		lineH:    (metrics.Ascent + metrics.Descent).Round() + 2*textBoxPadding + 2,
	}, nil
}

func (r *Renderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Render draws scene onto dst. Layers are painted in a fixed order: horizon
// and pitch ladder, compass tape, command reticle, motor diagram, readout.
func (r *Renderer) Render(dst *image.RGBA, scene *Scene) error {
	size := dst.Bounds().Size()
	if size.X != scene.Viewport.Width || size.Y != scene.Viewport.Height {
		return fmt.Errorf("surface is %dx%d, scene expects %dx%d", size.X, size.Y, scene.Viewport.Width, scene.Viewport.Height)
	}

	r.context.SetClip(dst.Bounds())
	r.context.SetDst(dst)

	c := newCanvas(dst)
	c.clear()

	ops := []struct {
		msg string
		fn  func(*canvas, *Scene) error
	}{
		{"drawing horizon", r.drawHorizon},
		{"drawing compass tape", r.drawCompass},
		{"drawing reticle", r.drawReticle},
		{"drawing motor diagram", r.drawMotors},
		{"drawing readout", r.drawReadout},
	}
	for _, op := range ops {
		if err := op.fn(c, scene); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (r *Renderer) drawHorizon(c *canvas, scene *Scene) error {
	h := scene.Horizon
	group := h.Transform()

	w, ht := float64(scene.Viewport.Width), float64(scene.Viewport.Height)
	ext := math.Max(w, ht) * 10
	cx, cy := h.Center.X, h.Center.Y

	sky := group.ApplyAll([]Point{{cx - ext, cy - ext}, {cx + ext, cy - ext}, {cx + ext, cy}, {cx - ext, cy}})
	c.fill([][]Point{sky}, newLinearGradient(group, cy-ht/2, cy, skyTop, skyHorizon))

	ground := group.ApplyAll([]Point{{cx - ext, cy}, {cx + ext, cy}, {cx + ext, cy + ext}, {cx - ext, cy + ext}})
	c.fill([][]Point{ground}, newLinearGradient(group, cy, cy+ht/2, groundTop, groundDepth))

	c.strokeLine(group.Apply(Point{cx - ext, cy}), group.Apply(Point{cx + ext, cy}), horizonLineWidth, horizonLineColor)

	for _, rung := range scene.Ladder {
		if rung.Alpha <= 0 {
			continue
		}
		col := withAlpha(horizonLineColor, rung.Alpha)

		a := group.Apply(Point{cx - rung.HalfLength, rung.Y})
		b := group.Apply(Point{cx + rung.HalfLength, rung.Y})
		c.strokeLine(a, b, ladderLineWidth, col)

		if rung.Label != "" {
			// labels follow the rung but stay axis-aligned
			anchor := group.Apply(Point{cx + rung.HalfLength + 5, rung.Y})
			if err := r.drawText(rung.Label, int(anchor.X), int(anchor.Y)+r.ascent/2, col); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Renderer) tapeHeight() float64 {
	return math.Round(r.config.FontSize * 2.5)
}

func (r *Renderer) drawCompass(c *canvas, scene *Scene) error {
	w := float64(scene.Viewport.Width)
	tapeH := r.tapeHeight()
	cx := w / 2

	c.fillRect(Point{0, 0}, Point{w, tapeH}, tapeColor)

	for _, tick := range scene.Compass.Ticks {
		if tick.Alpha <= 0 || tick.X < 0 || tick.X > w {
			continue
		}
		col := withAlpha(textColor, tick.Alpha)

		length := tapeH * 0.2
		if tick.Major {
			length = tapeH * 0.35
		}
		c.strokeLine(Point{tick.X, tapeH}, Point{tick.X, tapeH - length}, tickLineWidth, col)

		if tick.Label != "" {
			width := font.MeasureString(r.fontFace, tick.Label).Round()
			if err := r.drawText(tick.Label, int(tick.X)-width/2, r.ascent+3, col); err != nil {
				return err
			}
		}
	}

	c.fillPolygon([]Point{{cx - 6, tapeH}, {cx + 6, tapeH}, {cx, tapeH - 8}}, tapeMarkerColor)
	return nil
}

func (r *Renderer) drawReticle(c *canvas, scene *Scene) error {
	rt := scene.Reticle
	group := rt.Transform()
	shadow := Translate(shadowOffset, shadowOffset).Then(group)

	for _, seg := range rt.Segments {
		c.strokeLine(shadow.Apply(seg[0]), shadow.Apply(seg[1]), rt.Width+1, shadowColor)
	}
	for _, seg := range rt.Segments {
		c.strokeLine(group.Apply(seg[0]), group.Apply(seg[1]), rt.Width, reticleColor)
	}

	return nil
}

func (r *Renderer) drawMotors(c *canvas, scene *Scene) error {
	d := scene.Motors
	if len(d.Motors) == 0 {
		return nil
	}

	o := d.Origin
	c.fillRect(o, Point{o.X + d.Size, o.Y + d.Size}, insetColor)

	mid := o.Add(Point{d.Size / 2, d.Size / 2})
	for _, m := range d.Motors {
		c.strokeLine(mid, o.Add(m.Center), armLineWidth, armColor)
	}

	for _, m := range d.Motors {
		center := o.Add(m.Center)
		c.fillCircle(center, m.Radius, m.Fill)
		c.strokeCircle(center, m.Radius, motorStrokeWidth, m.Stroke)

		label := strconv.Itoa(m.Index)
		width := font.MeasureString(r.fontFace, label).Round()
		if err := r.drawText(label, int(center.X)-width/2, int(center.Y)+r.ascent/2, textColor); err != nil {
			return err
		}
	}

	return nil
}

func (r *Renderer) drawReadout(c *canvas, scene *Scene) error {
	x := readoutMargin
	y := int(r.tapeHeight()) + readoutMargin

	for _, line := range scene.Readout {
		width := font.MeasureString(r.fontFace, line.Text).Round()

		bg := textBoxColor
		if line.Warning {
			bg = warningColor
		}
		c.fillRect(
			Point{float64(x - textBoxPadding), float64(y)},
			Point{float64(x + width + textBoxPadding), float64(y + r.lineH - 2)},
			bg,
		)

		if err := r.drawText(line.Text, x, y+textBoxPadding+r.ascent, textColor); err != nil {
			return err
		}
		y += r.lineH
	}

	return nil
}

func (r *Renderer) drawText(s string, x, y int, col color.Color) error {
	r.context.SetSrc(image.NewUniform(col))
	if _, err := r.context.DrawString(s, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing text %q: %w", s, err)
	}
	return nil
}
