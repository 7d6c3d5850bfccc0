package app

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/flybot-groundstation/internal/hud"
	"github.com/roman-kulish/flybot-groundstation/internal/telemetry"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// ConfigError is returned for invalid configuration values
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return e.msg
}

// Config represents the ground-station configuration
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Controller ControllerConfig `yaml:"controller"`
	Display    DisplayConfig    `yaml:"display"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ControllerConfig represents the flight controller connection
type ControllerConfig struct {
	URL             string   `yaml:"url"`             // Base HTTP URL of the flight controller
	RequestInterval Duration `yaml:"requestInterval"` // State request period
	Protocol        string   `yaml:"protocol"`        // Roll sign convention, v1 or v2
}

// DisplayConfig represents the HUD raster surface
type DisplayConfig struct {
	Width        int         `yaml:"width"`
	Height       int         `yaml:"height"`
	Output       string      `yaml:"output"` // Path of the rendered frame
	Format       ImageFormat `yaml:"format"`
	FontSize     float64     `yaml:"fontSize"`
	MotorInset   float64     `yaml:"motorInset"`
	MotorPadding float64     `yaml:"motorPadding"`
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Controller: ControllerConfig{
			URL:             "http://flybot.local",
			RequestInterval: Duration(100 * time.Millisecond),
			Protocol:        "v2",
		},
		Display: DisplayConfig{
			Width:        480,
			Height:       320,
			Output:       "hud.png",
			Format:       ImagePNG,
			FontSize:     12,
			MotorInset:   120,
			MotorPadding: 10,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := NewConfig()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	return c, nil
}

// NewConfigFromCLI builds the configuration from the command line
func NewConfigFromCLI() (*Config, error) {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

// ParseArgs loads the file named by -c, if any, and applies flag overrides
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	var configPath, controllerURL, output, imageFormat, protocol string
	fs.StringVar(&configPath, "c", "", "Path to the configuration file")
	fs.StringVar(&controllerURL, "url", "", "Flight controller base URL, e.g. http://flybot.local")
	fs.StringVar(&output, "o", "", "Path to the output image")
	fs.StringVar(&imageFormat, "f", "", "Output image format. [png, jpeg]")
	fs.StringVar(&protocol, "protocol", "", "Roll sign convention. [v1, v2]")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := NewConfig()
	if configPath != "" {
		var err error
		if c, err = LoadConfig(configPath); err != nil {
			return nil, fmt.Errorf("failed to load configuration file: %w", err)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			c.Controller.URL = controllerURL
		case "o":
			c.Display.Output = output
		case "f":
			c.Display.Format = ImageFormat(strings.ToLower(imageFormat))
		case "protocol":
			c.Controller.Protocol = protocol
		}
	})

	if err := c.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return NewConfigError("invalid log level '%s'", c.Settings.LogLevel)
	}

	u, err := url.Parse(c.Controller.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewConfigError("controller url must be an absolute http(s) url: '%s'", c.Controller.URL)
	}
	if c.Controller.RequestInterval <= 0 {
		return NewConfigError("request interval must be positive: %s given", c.Controller.RequestInterval)
	}
	if _, err = hud.ParseProtocol(c.Controller.Protocol); err != nil {
		return NewConfigError("invalid protocol '%s', expected v1 or v2", c.Controller.Protocol)
	}

	d := c.Display
	switch {
	case d.Width <= 0 || d.Height <= 0:
		return NewConfigError("display size must be positive: %dx%d given", d.Width, d.Height)
	case d.Output == "":
		return NewConfigError("output file is required")
	case d.FontSize <= 0:
		return NewConfigError("font size must be positive: %v given", d.FontSize)
	case d.MotorInset <= 0 || d.MotorInset > float64(min(d.Width, d.Height)):
		return NewConfigError("motor inset must fit the display: %v given", d.MotorInset)
	case d.MotorPadding < 0 || 2*d.MotorPadding >= d.MotorInset:
		return NewConfigError("motor padding must be less than half the inset: %v given", d.MotorPadding)
	}
	if _, ok := validImageFormats[d.Format]; !ok {
		return NewConfigError("invalid image format: %s", d.Format)
	}

	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Settings.LogLevel))
	return level, err
}

func (c *Config) Protocol() hud.Protocol {
	p, err := hud.ParseProtocol(c.Controller.Protocol)
	if err != nil {
		return hud.ProtocolV2
	}
	return p
}

// WebSocketURL derives the telemetry socket URL from the controller base URL.
func (c *Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.Controller.URL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported controller url scheme '%s'", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + telemetry.WebSocketPath

	return u.String(), nil
}
