package app

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/flybot-groundstation/internal/fcsim"
	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_Run(t *testing.T) {
	sim := fcsim.NewServer()
	sim.SetState(telemetry.Sample{
		MeasuredRoll:    0.2,
		Throttle:        0.5,
		FlightStatus:    telemetry.FlightStatusFlying,
		HasFlightStatus: true,
	})
	srv := httptest.NewServer(sim)
	defer srv.Close()

	config := NewConfig()
	config.Controller.URL = srv.URL
	config.Controller.RequestInterval = Duration(20 * time.Millisecond)
	config.Display.Output = filepath.Join(t.TempDir(), "hud.png")

	a, err := New(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer a.Close()

	console, input := io.Pipe()
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, console, &out)
	}()

	waitFor(t, "first sample", func() bool {
		s := a.Latest().Get()
		return s != nil && s.MeasuredRoll == 0.2
	})

	f, err := os.Open(config.Display.Output)
	if err != nil {
		t.Fatalf("opening frame: %v", err)
	}
	img, err := png.Decode(f)
	_ = f.Close()
	if err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 480 || b.Dy() != 320 {
		t.Errorf("frame is %dx%d, want 480x320", b.Dx(), b.Dy())
	}

	if _, err = io.WriteString(input, "set motor1.x 120\n"); err != nil {
		t.Fatalf("writing console: %v", err)
	}
	waitFor(t, "write reply", func() bool {
		return strings.Contains(out.String(), "set motor1.x: ok")
	})
	if v, _ := a.store.Value("motor1.x"); v != 120 {
		t.Errorf("local motor1.x = %v, want 120", v)
	}
	if v := sim.Registry().Values()["motor1.x"]; v != 120 {
		t.Errorf("server motor1.x = %v, want 120", v)
	}

	if _, err = io.WriteString(input, "set numMotors 2.5\n"); err != nil {
		t.Fatalf("writing console: %v", err)
	}
	waitFor(t, "rejected write reply", func() bool {
		return strings.Contains(out.String(), "set numMotors: configuration write rejected")
	})

	if _, err = io.WriteString(input, "calibrate gyro\n"); err != nil {
		t.Fatalf("writing console: %v", err)
	}
	waitFor(t, "forwarded command", func() bool {
		return slices.Contains(sim.Commands(), "calibrate gyro")
	})

	if _, err = io.WriteString(input, "reconnect\n"); err != nil {
		t.Fatalf("writing console: %v", err)
	}
	waitFor(t, "reconnect reply", func() bool {
		return strings.Contains(out.String(), "already connected")
	})

	cancel()
	_ = input.Close()

	select {
	case err = <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestApp_RunWithoutController(t *testing.T) {
	config := NewConfig()
	config.Controller.URL = "http://127.0.0.1:1"
	config.Display.Output = filepath.Join(t.TempDir(), "hud.jpeg")
	config.Display.Format = ImageJPEG

	a, err := New(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// an unreachable controller degrades to the level, unconfigured HUD
	if err = a.Run(ctx, strings.NewReader("config\n"), io.Discard); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if _, err = os.Stat(config.Display.Output); err != nil {
		t.Errorf("no frame written: %v", err)
	}
}
