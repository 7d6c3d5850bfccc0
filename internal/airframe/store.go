package airframe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const (
	ConfigPath   = "/config.json"
	DefaultsPath = "/config_defaults.json"
	ValuePath    = "/config_value"
	RestorePath  = "/config_restore"
)

// ErrWriteRejected is returned when the flight controller refuses a write.
var ErrWriteRejected = errors.New("configuration write rejected")

// FetchError is returned when a configuration resource cannot be read.
type FetchError struct {
	Resource string
	err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %s", e.Resource, e.err)
}

func (e *FetchError) Unwrap() error {
	return e.err
}

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) func(s *Store) {
	return func(s *Store) {
		s.logger = logger.With(slog.String("controller", s.baseURL.String()))
	}
}

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(client *http.Client) func(s *Store) {
	return func(s *Store) {
		s.client = client
	}
}

// Store keeps the client view of the server-owned configuration. The server is
// the only source of truth: every successful write is followed by a full
// re-fetch, and a failed write or fetch leaves local state untouched.
type Store struct {
	baseURL *url.URL
	client  *http.Client

	mu       sync.RWMutex
	current  Record
	defaults Record

	logger *slog.Logger
}

type writeResult struct {
	Success bool `json:"success"`
}

// NewStore creates a store for the flight controller at baseURL
func NewStore(baseURL string, options ...func(s *Store)) (*Store, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing controller url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported controller url scheme '%s'", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	s := Store{
		baseURL: u,
		client:  http.DefaultClient,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// FetchAll replaces the current record with the server's copy.
func (s *Store) FetchAll(ctx context.Context) error {
	r, err := s.fetch(ctx, ConfigPath)
	if err != nil {
		s.logger.Error(err.Error())
		return err
	}

	s.mu.Lock()
	s.current = r
	s.mu.Unlock()

	s.logger.Debug("configuration fetched", slog.Int("keys", len(r)))
	return nil
}

// FetchDefaults replaces the factory default record.
func (s *Store) FetchDefaults(ctx context.Context) error {
	r, err := s.fetch(ctx, DefaultsPath)
	if err != nil {
		s.logger.Error(err.Error())
		return err
	}

	s.mu.Lock()
	s.defaults = r
	s.mu.Unlock()

	s.logger.Debug("configuration defaults fetched", slog.Int("keys", len(r)))
	return nil
}

// SetValue writes one key and reconciles with a full fetch.
func (s *Store) SetValue(ctx context.Context, key string, value float64) error {
	form := url.Values{
		"key":   {key},
		"value": {strconv.FormatFloat(value, 'g', -1, 64)},
	}
	if err := s.write(ctx, ValuePath, form); err != nil {
		s.logger.Error(err.Error(), slog.String("key", key), slog.Float64("value", value))
		return err
	}

	// optimistic; replaced by the fetch below
	s.mu.Lock()
	if s.current != nil {
		s.current[key] = value
	}
	s.mu.Unlock()

	if err := s.FetchAll(ctx); err != nil {
		return fmt.Errorf("reconciling '%s': %w", key, err)
	}
	return nil
}

// Restore resets one key to its factory default and reconciles with a full fetch.
func (s *Store) Restore(ctx context.Context, key string) error {
	if err := s.write(ctx, RestorePath, url.Values{"key": {key}}); err != nil {
		s.logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	s.mu.Lock()
	if def, ok := s.defaults[key]; ok && s.current != nil {
		s.current[key] = def
	}
	s.mu.Unlock()

	if err := s.FetchAll(ctx); err != nil {
		return fmt.Errorf("reconciling '%s': %w", key, err)
	}
	return nil
}

// Current returns a copy of the current record.
func (s *Store) Current() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Defaults returns a copy of the factory default record.
func (s *Store) Defaults() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults.Clone()
}

// Value returns the current value of key.
func (s *Store) Value(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[key]
	return v, ok
}

// Modified returns the keys whose current value differs from the default.
// It is empty until both records were fetched.
func (s *Store) Modified() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.defaults == nil {
		return nil
	}
	return Modified(s.current, s.defaults)
}

func (s *Store) endpoint(path string) string {
	u := *s.baseURL
	u.Path += path
	return u.String()
}

func (s *Store) fetch(ctx context.Context, path string) (r Record, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(path), nil)
	if err != nil {
		return nil, &FetchError{Resource: path, err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Resource: path, err: err}
	}
	defer closeWithError(resp.Body, &err)

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Resource: path, err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err = json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &FetchError{Resource: path, err: fmt.Errorf("decoding: %w", err)}
	}
	if _, ok := r[KeyNumMotors]; !ok {
		return nil, &FetchError{Resource: path, err: fmt.Errorf("missing '%s'", KeyNumMotors)}
	}

	return r, nil
}

func (s *Store) write(ctx context.Context, path string, form url.Values) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s: %w", path, err)
	}
	defer closeWithError(resp.Body, &err)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: '%s': status %s", ErrWriteRejected, form.Get("key"), resp.Status)
	}

	var result writeResult
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding %s reply: %w", path, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: '%s'", ErrWriteRejected, form.Get("key"))
	}

	return nil
}

func closeWithError(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
