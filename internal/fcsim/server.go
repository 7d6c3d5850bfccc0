// Package fcsim simulates the flight controller side of the ground-station
// protocol: the /ws telemetry socket and the configuration resources.
package fcsim

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/flybot-groundstation/internal/airframe"
	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

const WebSocketPath = telemetry.WebSocketPath

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLegacyFrames makes the server answer with the earliest protocol
// variant: armed boolean only, no flight status, flags, errors or motors.
func WithLegacyFrames() func(s *Server) {
	return func(s *Server) {
		s.legacy = true
	}
}

// WithRegistry replaces the default configuration registry
func WithRegistry(r *Registry) func(s *Server) {
	return func(s *Server) {
		s.registry = r
	}
}

// Server is an http.Handler speaking the flight controller protocol.
type Server struct {
	registry *Registry
	upgrader websocket.Upgrader
	legacy   bool

	mu    sync.RWMutex
	state telemetry.Sample

	commandsMu sync.Mutex
	commands   []string

	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a simulator with the default registry and a discard logger
func NewServer(options ...func(s *Server)) *Server {
	s := Server{
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		state: telemetry.Sample{
			HardwareFlags:    telemetry.HardwareMPUOK | telemetry.HardwareRCOK,
			HasHardwareFlags: true,
			HasFlightStatus:  true,
		},
		mux:    http.NewServeMux(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	s.mux.HandleFunc("GET "+airframe.ConfigPath, s.handleConfig)
	s.mux.HandleFunc("GET "+airframe.DefaultsPath, s.handleDefaults)
	s.mux.HandleFunc("POST "+airframe.ValuePath, s.handleSetValue)
	s.mux.HandleFunc("POST "+airframe.RestorePath, s.handleRestore)
	s.mux.HandleFunc(WebSocketPath, s.handleWebSocket)

	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Registry returns the configuration registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// SetState replaces the state reported to clients.
func (s *Server) SetState(state telemetry.Sample) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the state reported to clients.
func (s *Server) State() telemetry.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Commands returns the operator commands received so far.
func (s *Server) Commands() []string {
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.registry.Values())
}

func (s *Server) handleDefaults(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.registry.Defaults())
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	key, value := r.FormValue("key"), r.FormValue("value")
	ok := s.registry.SetString(key, value)

	s.logger.Info("config write", slog.String("key", key), slog.String("value", value), slog.Bool("success", ok))
	s.writeJSON(w, map[string]bool{"success": ok})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("key")
	ok := s.registry.Restore(key)

	s.logger.Info("config restore", slog.String("key", key), slog.Bool("success", ok))
	s.writeJSON(w, map[string]bool{"success": ok})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("json encode error", slog.String("error", err.Error()))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	logger := s.logger.With(slog.String("remote", r.RemoteAddr))
	logger.Info("client connected")

	if err = s.writeNotice(conn, telemetry.FrameHello, ""); err != nil {
		logger.Warn("writing hello", slog.String("error", err.Error()))
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("client disconnected")
			return
		}

		msg := string(data)
		switch {
		case strings.HasPrefix(msg, telemetry.RequestState):
			state := s.State()
			var frame []byte
			if frame, err = telemetry.Encode(&state, s.legacy); err != nil {
				logger.Error("encoding state", slog.String("error", err.Error()))
				return
			}
			err = conn.WriteMessage(websocket.TextMessage, frame)

		default:
			if cmd, ok := strings.CutPrefix(msg, telemetry.CommandMessage("")); ok {
				s.commandsMu.Lock()
				s.commands = append(s.commands, cmd)
				s.commandsMu.Unlock()
				logger.Info("operator command", slog.String("command", cmd))
			}
			err = s.writeNotice(conn, telemetry.FrameEcho, msg)
		}
		if err != nil {
			logger.Warn("writing frame", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) writeNotice(conn *websocket.Conn, frameType, data string) error {
	frame, err := telemetry.EncodeNotice(frameType, data)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}
