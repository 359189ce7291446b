package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/transport/httptransport"
	"github.com/layrjs/layr-sub008/transport/natstransport"
)

// Config is the server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	Name            string        `yaml:"name"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// HTTPConfig enables and configures the HTTP transport.
type HTTPConfig struct {
	Enabled              bool `yaml:"enabled"`
	httptransport.Config `yaml:",inline"`
}

// NATSConfig enables and configures the NATS transport.
type NATSConfig struct {
	Enabled              bool `yaml:"enabled"`
	natstransport.Config `yaml:",inline"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name to a slog level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidConfig, "LoggingConfig", "SlogLevel",
			fmt.Sprintf("unknown level %q", l.Level))
	}
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		c.Server.Name = "layr-server"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if !c.HTTP.Enabled && !c.NATS.Enabled {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"at least one transport must be enabled")
	}
	if c.HTTP.Enabled {
		if err := c.HTTP.Config.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "http transport")
		}
	}
	if c.NATS.Enabled {
		if err := c.NATS.Config.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "nats transport")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("metrics port %d out of range", c.Metrics.Port))
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Loader loads configuration from layered YAML files with environment
// variable overrides.
type Loader struct {
	layers []string
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// AddLayer appends a YAML file; later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// Load reads all layers over the defaults, applies environment overrides,
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := defaults()

	for _, path := range l.layers {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load",
				fmt.Sprintf("reading %s", path))
		}
		// Decoding into the accumulated struct overlays only the keys the
		// layer sets.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load",
				fmt.Sprintf("parsing %s", path))
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            "layr-server",
			ShutdownTimeout: 15 * time.Second,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Config: httptransport.Config{
				Addr: ":4400",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Environment overrides, highest precedence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LAYR_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LAYR_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("LAYR_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("LAYR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
