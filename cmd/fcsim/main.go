package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roman-kulish/flybot-groundstation/internal/fcsim"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var addr, level string
	var legacy, static bool
	var interval time.Duration
	flag.StringVar(&addr, "addr", ":8080", "Address to listen on")
	flag.StringVar(&level, "log-level", "info", "Log level. [debug, info, warn, error]")
	flag.BoolVar(&legacy, "legacy", false, "Send armed-only state frames of the earliest protocol")
	flag.BoolVar(&static, "static", false, "Report a level, disarmed vehicle instead of animating")
	flag.DurationVar(&interval, "interval", 50*time.Millisecond, "Animation step")
	flag.Parse()

	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(l)

	opts := []func(s *fcsim.Server){fcsim.WithLogger(logger)}
	if legacy {
		opts = append(opts, fcsim.WithLegacyFrames())
	}
	sim := fcsim.NewServer(opts...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !static {
		go sim.Animate(ctx, interval)
	}

	srv := &http.Server{Addr: addr, Handler: sim}
	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("flight controller simulator listening", slog.String("addr", addr), slog.Bool("legacy", legacy))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
