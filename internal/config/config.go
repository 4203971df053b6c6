// Package config loads application configuration from a .env file, an
// optional YAML file and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "change_me_in_production"

// Config holds all runtime configuration for the service.
type Config struct {
	Port      string `yaml:"port"`
	AppEnv    string `yaml:"appEnv"`
	JWTSecret string `yaml:"jwtSecret"`
	LogLevel  string `yaml:"logLevel"`

	// MetricsPort serves /metrics on its own listener, outside the envelope.
	// Empty disables it.
	MetricsPort string `yaml:"metricsPort"`

	// Diagnostics exposes raw error messages and stack traces in envelopes.
	// Never enable it in production.
	Diagnostics *bool `yaml:"diagnostics"`

	// DocsPrefix is the path prefix served by the documentation UI. Responses
	// under it are never wrapped.
	DocsPrefix string `yaml:"docsPrefix"`
	// DocsMarkers are top-level JSON keys that identify an API description
	// document ("swagger", "openapi").
	DocsMarkers []string `yaml:"docsMarkers"`

	// UpstreamURL enables the /api/v1/upstream proxy when set.
	UpstreamURL string `yaml:"upstreamURL"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:        "8080",
		MetricsPort: "9090",
		AppEnv:      "development",
		JWTSecret:   defaultJWTSecret,
		LogLevel:    "INFO",
		DocsPrefix:  "/swagger",
		DocsMarkers: []string{"swagger", "openapi"},
	}
}

// Load builds the configuration in layers: defaults, .env file, YAML file
// (path argument or WRAPPER_CONFIG), environment variables. The result is
// validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("WRAPPER_CONFIG")
	}
	if path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DocsPrefix = getEnv("DOCS_PATH_PREFIX", cfg.DocsPrefix)
	cfg.UpstreamURL = getEnv("UPSTREAM_URL", cfg.UpstreamURL)

	if v := os.Getenv("DOCS_MARKERS"); v != "" {
		var markers []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				markers = append(markers, m)
			}
		}
		cfg.DocsMarkers = markers
	}

	if v := os.Getenv("DIAGNOSTICS_VISIBLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("ignoring invalid DIAGNOSTICS_VISIBLE", "value", v)
		} else {
			cfg.Diagnostics = &b
		}
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port %q is not numeric", c.Port)
	}
	if c.MetricsPort != "" {
		if _, err := strconv.Atoi(c.MetricsPort); err != nil {
			return fmt.Errorf("metrics port %q is not numeric", c.MetricsPort)
		}
	}
	if !strings.HasPrefix(c.DocsPrefix, "/") {
		return fmt.Errorf("docs prefix %q must start with /", c.DocsPrefix)
	}
	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream url %q is not absolute", c.UpstreamURL)
		}
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DiagnosticsVisible reports whether envelopes may carry raw error details.
// Unless set explicitly it is on everywhere except production.
func (c *Config) DiagnosticsVisible() bool {
	if c.Diagnostics != nil {
		return *c.Diagnostics
	}
	return !c.IsProduction()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
