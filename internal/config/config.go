package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/penguins/internal/errors"
)

// ConfigFileNames are tried in order by Load.
var ConfigFileNames = []string{"penguins.json", "penguins.yaml", "penguins.yml"}

const (
	// DefaultAddress is the default listen address.
	DefaultAddress = "localhost:8050"

	// DefaultMaxSessions caps concurrently live sessions.
	DefaultMaxSessions = 1000

	// DefaultNamespace prefixes every Prometheus metric.
	DefaultNamespace = "penguins"

	// DefaultTracerName is the OpenTelemetry instrumentation name.
	DefaultTracerName = "github.com/vango-dev/penguins"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Duration is a time.Duration written as a Go duration string ("30s") in
// JSON and YAML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.parse(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if secs, err := strconv.ParseFloat(value.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the complete penguins configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `json:"server" yaml:"server"`

	// Data selects the dataset source.
	Data DataConfig `json:"data" yaml:"data"`

	// Session contains live-session settings.
	Session SessionConfig `json:"session" yaml:"session"`

	// Telemetry names the metrics namespace and tracer.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Log configures the slog handler.
	Log LogConfig `json:"log" yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Address is the host:port to listen on.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	ReadTimeout     Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout    Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// AllowedOrigins lists origins accepted on the WebSocket upgrade.
	// Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// DataConfig selects the dataset source.
type DataConfig struct {
	// Source is "" for the bundled sample, s3://bucket/key, or a file path.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Region and Endpoint configure the S3 client for s3:// sources.
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// SessionConfig contains live-session settings.
type SessionConfig struct {
	MaxSessions       int      `json:"maxSessions,omitempty" yaml:"maxSessions,omitempty"`
	IdleTimeout       Duration `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty"`
	HeartbeatInterval Duration `json:"heartbeatInterval,omitempty" yaml:"heartbeatInterval,omitempty"`

	// Store is "memory" or "bolt".
	Store string `json:"store,omitempty" yaml:"store,omitempty"`

	// StorePath is the bbolt file used when Store is "bolt".
	StorePath string `json:"storePath,omitempty" yaml:"storePath,omitempty"`

	// TTL is how long persisted inputs stay resumable.
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// TelemetryConfig names the metrics namespace and tracer.
type TelemetryConfig struct {
	Namespace  string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory, trying each of
// ConfigFileNames in order.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New(errors.CodeConfigNotFound).
		WithDetail("No penguins.json or penguins.yaml found in " + dir)
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path, as YAML or JSON
// depending on the extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New(errors.CodeConfigWrite).Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigWrite).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(10 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(15 * time.Second)
	}

	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = DefaultMaxSessions
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = Duration(30 * time.Minute)
	}
	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = Duration(30 * time.Second)
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	if c.Session.Store == StoreBolt && c.Session.StorePath == "" {
		c.Session.StorePath = "penguins.db"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = Duration(24 * time.Hour)
	}

	if c.Telemetry.Namespace == "" {
		c.Telemetry.Namespace = DefaultNamespace
	}
	if c.Telemetry.TracerName == "" {
		c.Telemetry.TracerName = DefaultTracerName
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(field, detail string) error {
		return errors.New(errors.CodeConfigInvalid).WithField(field).WithDetail(detail)
	}

	if c.Server.Address == "" {
		return invalid("server.address", "The listen address must not be empty")
	}
	if c.Session.MaxSessions < 1 {
		return invalid("session.maxSessions", "At least one session must be allowed")
	}
	if c.Session.IdleTimeout < 0 || c.Session.TTL < 0 {
		return invalid("session", "Timeouts must not be negative")
	}
	if c.Session.HeartbeatInterval <= 0 {
		return invalid("session.heartbeatInterval", "The heartbeat interval must be positive")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreBolt:
		if c.Session.StorePath == "" {
			return invalid("session.storePath", "The bolt store needs a file path")
		}
	default:
		return invalid("session.store", "The store must be \"memory\" or \"bolt\"")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return invalid("log.level", "The level must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", "The format must be text or json")
	}
	return nil
}

// ApplyEnv overrides settings from PENGUINS_ADDR, PENGUINS_DATA and
// PENGUINS_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PENGUINS_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("PENGUINS_DATA"); v != "" {
		c.Data.Source = v
	}
	if v := os.Getenv("PENGUINS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Logger builds the slog logger described by the Log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
