package hud

import (
	"image"
	"math"
	"testing"

	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()

	r, err := NewRenderer(RenderConfig{})
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func render(t *testing.T, r *Renderer, scene Scene) *image.RGBA {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, scene.Viewport.Width, scene.Viewport.Height))
	if err := r.Render(img, &scene); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	return img
}

func isSky(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.B > c.R
}

func isGround(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return c.R > c.B
}

func TestRender_LevelAttitude(t *testing.T) {
	r := newTestRenderer(t)
	vp := Viewport{480, 320}

	img := render(t, r, BuildScene(&telemetry.Sample{}, nil, vp, SceneOptions{}))

	if !isSky(img, vp.Width-40, 60) {
		t.Errorf("pixel (%d, 60) = %+v, want sky", vp.Width-40, img.RGBAAt(vp.Width-40, 60))
	}
	if !isGround(img, 40, 280) {
		t.Errorf("pixel (40, 280) = %+v, want ground", img.RGBAAt(40, 280))
	}
	if a := img.RGBAAt(vp.Width/2, 5).A; a != 0xff {
		t.Errorf("compass tape alpha = %d, want opaque", a)
	}
}

func TestRender_RollDirectionByProtocol(t *testing.T) {
	r := newTestRenderer(t)
	vp := Viewport{480, 320}
	sample := &telemetry.Sample{MeasuredRoll: math.Pi / 2}

	v2 := render(t, r, BuildScene(sample, nil, vp, SceneOptions{Protocol: ProtocolV2}))
	if !isSky(v2, 60, 250) {
		t.Errorf("v2: pixel (60, 250) = %+v, want sky", v2.RGBAAt(60, 250))
	}
	if !isGround(v2, 420, 250) {
		t.Errorf("v2: pixel (420, 250) = %+v, want ground", v2.RGBAAt(420, 250))
	}

	v1 := render(t, r, BuildScene(sample, nil, vp, SceneOptions{Protocol: ProtocolV1}))
	if !isGround(v1, 60, 250) {
		t.Errorf("v1: pixel (60, 250) = %+v, want ground", v1.RGBAAt(60, 250))
	}
}

func TestRender_MotorFill(t *testing.T) {
	r := newTestRenderer(t)
	vp := Viewport{480, 320}

	sample := &telemetry.Sample{}
	sample.MotorCommand[0] = 1
	sample.MotorCommand[1] = -1

	scene := BuildScene(sample, quadRecord(80), vp, SceneOptions{})
	img := render(t, r, scene)

	// sample left of each motor center, clear of the index label
	m1 := scene.Motors.Origin.Add(scene.Motors.Motors[0].Center)
	if c := img.RGBAAt(int(m1.X)-6, int(m1.Y)); c.G < 200 || c.R > 50 {
		t.Errorf("motor 1 fill = %+v, want green", c)
	}

	m2 := scene.Motors.Origin.Add(scene.Motors.Motors[1].Center)
	if c := img.RGBAAt(int(m2.X)-6, int(m2.Y)); c.R < 200 || c.G > 50 {
		t.Errorf("motor 2 fill = %+v, want red", c)
	}
}

func TestRender_SurfaceSizeMismatch(t *testing.T) {
	r := newTestRenderer(t)

	scene := BuildScene(nil, nil, Viewport{480, 320}, SceneOptions{})
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	if err := r.Render(img, &scene); err == nil {
		t.Fatal("expected an error for a mismatched surface")
	}
}
