// Package config holds the runtime configuration of the host and
// controller binaries. Values come from built-in defaults, then an optional
// YAML file named by --config, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/AirDesk/internal/frame"
)

// Capture modes.
const (
	CaptureScreen  = "screen"
	CapturePattern = "pattern"
)

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StreamConfig is the stream settings a session starts with.
type StreamConfig struct {
	// Subsampling is one of 4:2:0, 4:4:0, 4:4:4 or gray.
	Subsampling string `yaml:"subsampling"`
	Quality     int    `yaml:"quality"`
	MaxFPS      int    `yaml:"max_fps"`
	MaxUnacked  int    `yaml:"max_unacked"`
}

// Settings converts c to clamped wire settings.
func (c StreamConfig) Settings() (frame.StreamSettings, error) {
	var flags frame.ColorFlags
	switch c.Subsampling {
	case "4:2:0", "420":
		flags = frame.Color420
	case "4:4:0", "440":
		flags = frame.Color440
	case "4:4:4", "444":
		flags = frame.Color444
	case "gray", "grayscale":
		flags = frame.ColorGrayscale
	default:
		return frame.StreamSettings{}, fmt.Errorf("unknown subsampling %q", c.Subsampling)
	}
	s := frame.StreamSettings{
		ColorFlags:              flags,
		JPEGQuality:             clampByte(c.Quality),
		MaxFPS:                  clampByte(c.MaxFPS),
		MaxUnacknowledgedFrames: clampByte(c.MaxUnacked),
	}
	return s.Clamp(), nil
}

func clampByte(v int) byte {
	return byte(min(max(v, 0), 255))
}

// HostConfig configures the host binary.
type HostConfig struct {
	// Listen is the address of the HTTP server carrying /desktop.
	Listen string `yaml:"listen"`

	// SignalingURL enables the WebRTC path when set.
	SignalingURL string `yaml:"signaling"`
	HostID       string `yaml:"id"`

	Capture     string        `yaml:"capture"`
	TileSize    int           `yaml:"tile_size"`
	JoinTimeout time.Duration `yaml:"join_timeout"`
	Stream      StreamConfig  `yaml:"stream"`
	Log         LogConfig     `yaml:"log"`
}

// ControllerConfig configures the controller binary.
type ControllerConfig struct {
	// URL is the host's WebSocket endpoint. Either URL or SignalingURL and
	// HostID must be set.
	URL          string       `yaml:"url"`
	SignalingURL string       `yaml:"signaling"`
	ControllerID string       `yaml:"id"`
	HostID       string       `yaml:"host"`
	Display      int          `yaml:"display"`
	Stream       StreamConfig `yaml:"stream"`
	Log          LogConfig    `yaml:"log"`
}

func defaultStream() StreamConfig {
	d := frame.DefaultStreamSettings()
	return StreamConfig{
		Subsampling: "4:2:0",
		Quality:     int(d.JPEGQuality),
		MaxFPS:      int(d.MaxFPS),
		MaxUnacked:  int(d.MaxUnacknowledgedFrames),
	}
}

// DefaultHost returns the host defaults.
func DefaultHost() HostConfig {
	return HostConfig{
		Listen:      ":8080",
		Capture:     CaptureScreen,
		TileSize:    64,
		JoinTimeout: 3 * time.Second,
		Stream:      defaultStream(),
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultController returns the controller defaults.
func DefaultController() ControllerConfig {
	return ControllerConfig{
		Stream: defaultStream(),
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func bindStream(fs *pflag.FlagSet, s *StreamConfig) {
	fs.StringVar(&s.Subsampling, "subsampling", s.Subsampling, "chroma subsampling: 4:2:0, 4:4:0, 4:4:4 or gray")
	fs.IntVar(&s.Quality, "quality", s.Quality, "JPEG quality (1-100)")
	fs.IntVar(&s.MaxFPS, "fps", s.MaxFPS, "maximum frames per second")
	fs.IntVar(&s.MaxUnacked, "max-unacked", s.MaxUnacked, "frames in flight before capture pauses")
}

func bindLog(fs *pflag.FlagSet, l *LogConfig) {
	fs.StringVar(&l.Level, "log-level", l.Level, "log level: debug, info, warn or error")
	fs.StringVar(&l.Format, "log-format", l.Format, "log format: text or json")
}

func hostFlags(cfg *HostConfig) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("airdesk-host", pflag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address for the /desktop endpoint")
	fs.StringVar(&cfg.SignalingURL, "signaling", cfg.SignalingURL, "signaling server URL (enables WebRTC)")
	fs.StringVar(&cfg.HostID, "id", cfg.HostID, "host ID (generated if empty)")
	fs.StringVar(&cfg.Capture, "capture", cfg.Capture, "capture source: screen or pattern")
	fs.IntVar(&cfg.TileSize, "tile-size", cfg.TileSize, "edge of the squares compared between grabs")
	fs.DurationVar(&cfg.JoinTimeout, "join-timeout", cfg.JoinTimeout, "how long StopStreaming waits for the capture loop")
	bindStream(fs, &cfg.Stream)
	bindLog(fs, &cfg.Log)
	return fs, path
}

func controllerFlags(cfg *ControllerConfig) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet("airdesk-controller", pflag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	fs.StringVar(&cfg.URL, "url", cfg.URL, "host WebSocket URL, e.g. ws://host:8080/desktop")
	fs.StringVar(&cfg.SignalingURL, "signaling", cfg.SignalingURL, "signaling server URL")
	fs.StringVar(&cfg.ControllerID, "id", cfg.ControllerID, "controller ID (generated if empty)")
	fs.StringVar(&cfg.HostID, "host", cfg.HostID, "host ID to connect to through signaling")
	fs.IntVar(&cfg.Display, "display", cfg.Display, "display index to stream (0 = primary)")
	bindStream(fs, &cfg.Stream)
	bindLog(fs, &cfg.Log)
	return fs, path
}

// ParseHostFlags parses args (without the program name) into a HostConfig.
func ParseHostFlags(args []string) (*HostConfig, error) {
	cfg := DefaultHost()
	fs, path := hostFlags(&cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path != "" {
		// Flags win over the file: load the file into fresh defaults, then
		// parse the command line again on top of it.
		cfg = DefaultHost()
		if err := loadFile(*path, &cfg); err != nil {
			return nil, err
		}
		fs, _ = hostFlags(&cfg)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	if cfg.HostID == "" {
		cfg.HostID = "host-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseControllerFlags parses args (without the program name) into a
// ControllerConfig.
func ParseControllerFlags(args []string) (*ControllerConfig, error) {
	cfg := DefaultController()
	fs, path := controllerFlags(&cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *path != "" {
		cfg = DefaultController()
		if err := loadFile(*path, &cfg); err != nil {
			return nil, err
		}
		fs, _ = controllerFlags(&cfg)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	if cfg.ControllerID == "" {
		cfg.ControllerID = "controller-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that have no sensible clamp.
func (c *HostConfig) Validate() error {
	var errs []error
	if c.Listen == "" && c.SignalingURL == "" {
		errs = append(errs, errors.New("one of --listen or --signaling is required"))
	}
	if c.Capture != CaptureScreen && c.Capture != CapturePattern {
		errs = append(errs, fmt.Errorf("unknown capture source %q", c.Capture))
	}
	if c.TileSize < 8 {
		errs = append(errs, fmt.Errorf("tile size %d is below 8", c.TileSize))
	}
	if c.JoinTimeout <= 0 {
		errs = append(errs, errors.New("join timeout must be positive"))
	}
	if _, err := c.Stream.Settings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *ControllerConfig) Validate() error {
	var errs []error
	switch {
	case c.URL != "" && c.SignalingURL != "":
		errs = append(errs, errors.New("--url and --signaling are mutually exclusive"))
	case c.URL == "" && c.SignalingURL == "":
		errs = append(errs, errors.New("one of --url or --signaling is required"))
	case c.SignalingURL != "" && c.HostID == "":
		errs = append(errs, errors.New("--host is required with --signaling"))
	}
	if c.Display < 0 || c.Display > 255 {
		errs = append(errs, fmt.Errorf("display index %d out of range", c.Display))
	}
	if _, err := c.Stream.Settings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
