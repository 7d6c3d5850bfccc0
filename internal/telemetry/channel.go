package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

var (
	// ErrNotReady is returned when a message is sent while the channel is not open.
	// The message is dropped, never queued.
	ErrNotReady = errors.New("telemetry channel not ready")

	// ErrAlreadyConnected is returned by Connect on an open channel.
	ErrAlreadyConnected = errors.New("telemetry channel already connected")
)

// WithLogger sets the logger for the channel
func WithLogger(logger *slog.Logger) func(c *Channel) {
	return func(c *Channel) {
		c.logger = logger.With(slog.String("url", c.url))
	}
}

// WithDialer replaces the default websocket dialer
func WithDialer(dialer *websocket.Dialer) func(c *Channel) {
	return func(c *Channel) {
		c.dialer = dialer
	}
}

// Channel owns one persistent websocket connection to the flight controller.
// It decodes inbound frames and hands state samples to the consumer; all other
// frame types are dropped.
type Channel struct {
	url    string
	dialer *websocket.Dialer

	ready atomic.Bool

	mu   sync.Mutex // serializes writes, gorilla allows one concurrent writer
	conn *websocket.Conn

	logger *slog.Logger
}

// NewChannel creates a channel for the given websocket URL with a discard logger
func NewChannel(url string, options ...func(c *Channel)) *Channel {
	c := Channel{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Connect dials the flight controller and starts reading frames. Decoded
// samples are sent to samples. The returned channel yields the reason the
// connection ended (nil for a local Close) and is then closed.
func (c *Channel) Connect(ctx context.Context, samples chan<- *Sample) (<-chan error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil, ErrAlreadyConnected
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", c.url, err)
	}

	c.conn = conn
	c.ready.Store(true)
	c.logger.Info("telemetry channel connected")

	closed := make(chan error, 1)
	go func() {
		defer close(closed)

		err := c.readLoop(ctx, conn, samples)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.ready.Store(false)
		}
		c.mu.Unlock()
		_ = conn.Close()

		if err != nil {
			c.logger.Warn("telemetry channel closed", slog.String("reason", err.Error()))
		} else {
			c.logger.Info("telemetry channel closed")
		}
		closed <- err
	}()

	return closed, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, samples chan<- *Sample) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !c.ready.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		msg, err := Decode(data)
		if err != nil {
			// previous sample stays in effect
			c.logger.Warn(err.Error(), slog.Int("size", len(data)))
			continue
		}

		switch msg.Type {
		case FrameState:
			select {
			case samples <- msg.Sample:
			case <-ctx.Done():
				return nil
			}

		case FrameEcho:
			c.logger.Debug("echo", slog.String("data", msg.Echo))

		default:
			c.logger.Debug("ignoring frame", slog.String("type", msg.Type))
		}
	}
}

// Ready reports whether the connection is open.
func (c *Channel) Ready() bool {
	return c.ready.Load()
}

// RequestState asks for the next telemetry push.
func (c *Channel) RequestState() error {
	return c.send(RequestState)
}

// SendCommand forwards operator text verbatim.
func (c *Channel) SendCommand(text string) error {
	return c.send(CommandMessage(text))
}

func (c *Channel) send(message string) error {
	if !c.ready.Load() {
		c.logger.Debug("channel not ready, dropping message", slog.String("message", message))
		return ErrNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		c.logger.Debug("channel not ready, dropping message", slog.String("message", message))
		return ErrNotReady
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		c.ready.Store(false)
		return fmt.Errorf("sending %q: %w", message, err)
	}
	return nil
}

// Close closes the connection. It is safe to call Close on a closed channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	c.ready.Store(false)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))

	err := c.conn.Close()
	c.conn = nil
	return err
}
