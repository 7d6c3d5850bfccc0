package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
	"github.com/roman-kulish/flybot-groundstation/internal/hud"
	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	a, err := New(config, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx, os.Stdin, os.Stdout)
}

// App is the ground-station client. Every state change happens on the
// goroutine running Run; network work runs elsewhere and posts its result
// back as an event.
type App struct {
	config *Config

	store    *airframe.Store
	channel  *telemetry.Channel
	renderer *hud.Renderer
	surface  *image.RGBA
	latest   telemetry.Latest

	samples chan *telemetry.Sample
	events  chan func()
	closed  <-chan error
	frames  int

	logger *slog.Logger
}

// New wires the store, channel and renderer for config
func New(config *Config, logger *slog.Logger) (*App, error) {
	store, err := airframe.NewStore(config.Controller.URL, airframe.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating configuration store: %w", err)
	}

	wsURL, err := config.WebSocketURL()
	if err != nil {
		return nil, fmt.Errorf("creating telemetry channel: %w", err)
	}

	renderer, err := hud.NewRenderer(hud.RenderConfig{FontSize: config.Display.FontSize})
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	return &App{
		config:   config,
		store:    store,
		channel:  telemetry.NewChannel(wsURL, telemetry.WithLogger(logger)),
		renderer: renderer,
		surface:  image.NewRGBA(image.Rect(0, 0, config.Display.Width, config.Display.Height)),
		samples:  make(chan *telemetry.Sample, 1),
		events:   make(chan func()),
		logger:   logger,
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.channel.Close(), a.renderer.Close())
}

// Latest returns the retained telemetry sample
func (a *App) Latest() telemetry.Provider {
	return &a.latest
}

// Run drives the client until ctx is done. Operator lines are read from
// console and replies written to out.
func (a *App) Run(ctx context.Context, console io.Reader, out io.Writer) error {
	interval := time.Duration(a.config.Controller.RequestInterval)

	a.logger.Info("starting ground station",
		slog.String("controller", a.config.Controller.URL),
		slog.String("interval", interval.String()),
		slog.Group("display",
			slog.String("output", a.config.Display.Output),
			slog.String("format", string(a.config.Display.Format)),
			slog.Int("width", a.config.Display.Width),
			slog.Int("height", a.config.Display.Height),
		))

	if err := a.render(); err != nil {
		return err
	}

	a.refreshConfig(ctx)
	a.connect(ctx)

	lines := make(chan string)
	go readLines(ctx, console, lines)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down", slog.Int("frames", a.frames))
			return nil

		case <-ticker.C:
			if err := a.channel.RequestState(); err != nil && !errors.Is(err, telemetry.ErrNotReady) {
				a.logger.Warn(err.Error())
			}

		case s := <-a.samples:
			a.latest.Set(s)
			a.renderOrLog()

		case err := <-a.closed:
			a.closed = nil
			if err != nil {
				a.logger.Warn("telemetry lost, type 'reconnect' to dial again", slog.String("error", err.Error()))
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			a.handleLine(ctx, line, out)

		case fn := <-a.events:
			fn()
		}
	}
}

func (a *App) handleLine(ctx context.Context, line string, out io.Writer) {
	cmd, err := parseCommand(line)
	if err != nil {
		_, _ = fmt.Fprintln(out, err)
		return
	}

	switch cmd.action {
	case actionNone:

	case actionCommand:
		if err = a.channel.SendCommand(cmd.text); err != nil {
			_, _ = fmt.Fprintln(out, "command dropped:", err)
		}

	case actionSet:
		a.async(ctx, func() error {
			return a.store.SetValue(ctx, cmd.key, cmd.value)
		}, func(err error) {
			a.reportWrite(out, "set "+cmd.key, err)
		})

	case actionRestore:
		a.async(ctx, func() error {
			return a.store.Restore(ctx, cmd.key)
		}, func(err error) {
			a.reportWrite(out, "restore "+cmd.key, err)
		})

	case actionConfig:
		if err = printConfig(out, a.store.Current(), a.store.Defaults()); err != nil {
			a.logger.Warn(err.Error())
		}

	case actionReconnect:
		if a.channel.Ready() {
			_, _ = fmt.Fprintln(out, "already connected")
			return
		}
		a.connect(ctx)
	}
}

func (a *App) reportWrite(out io.Writer, what string, err error) {
	if err != nil {
		_, _ = fmt.Fprintf(out, "%s: %s\n", what, err)
	} else {
		_, _ = fmt.Fprintf(out, "%s: ok\n", what)
	}
	// the motor diagram follows the reconciled record
	a.renderOrLog()
}

func (a *App) refreshConfig(ctx context.Context) {
	a.async(ctx, func() error {
		// both errors are logged by the store; the previous record stays
		return errors.Join(a.store.FetchDefaults(ctx), a.store.FetchAll(ctx))
	}, func(err error) {
		if err == nil {
			a.renderOrLog()
		}
	})
}

func (a *App) connect(ctx context.Context) {
	go func() {
		closed, err := a.channel.Connect(ctx, a.samples)
		a.post(ctx, func() {
			if err != nil {
				a.logger.Error(err.Error())
				return
			}
			a.closed = closed
		})
	}()
}

// async runs work off the event loop and hands its result to done on it.
func (a *App) async(ctx context.Context, work func() error, done func(error)) {
	go func() {
		err := work()
		a.post(ctx, func() { done(err) })
	}()
}

func (a *App) post(ctx context.Context, fn func()) {
	select {
	case a.events <- fn:
	case <-ctx.Done():
	}
}

func (a *App) renderOrLog() {
	if err := a.render(); err != nil {
		a.logger.Error(err.Error())
	}
}

func (a *App) render() error {
	d := a.config.Display
	scene := hud.BuildScene(a.latest.Get(), a.store.Current(), hud.Viewport{Width: d.Width, Height: d.Height}, hud.SceneOptions{
		Protocol:     a.config.Protocol(),
		MotorInset:   d.MotorInset,
		MotorPadding: d.MotorPadding,
	})

	if err := a.renderer.Render(a.surface, &scene); err != nil {
		return fmt.Errorf("rendering frame: %w", err)
	}

	size, err := writeImage(d.Output, d.Format, a.surface)
	if err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	a.frames++

	a.logger.Debug("frame written", slog.String("output", d.Output), slog.String("size", humanize.Bytes(uint64(size))))
	return nil
}

func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}
