package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Endpoints EndpointConfig
	Widget    WidgetConfig
	Logging   LogConfig
	Script    ScriptConfig
}

// ServerConfig holds the demo host HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8600"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// EndpointConfig holds the static content endpoints both surfaces load.
type EndpointConfig struct {
	BaseURL   string `envconfig:"STRIP_BASE_URL" default:"https://units.glimmerlab.dev"`
	StripPath string `envconfig:"STRIP_PATH" default:"/strip/index.html"`
	StoryPath string `envconfig:"STORY_PATH" default:"/story/index.html"`
}

// WidgetConfig holds the per-installation widget parameters.
type WidgetConfig struct {
	Token         string `envconfig:"STRIP_TOKEN" default:""`
	BundleVersion string `envconfig:"BUNDLE_VERSION" default:"1.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ScriptConfig bounds execution of page scripts during navigation.
// Protocol-path evaluations are never subject to a timeout.
type ScriptConfig struct {
	PageTimeout time.Duration `envconfig:"PAGE_SCRIPT_TIMEOUT" default:"5s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8600",
			Host: "0.0.0.0",
		},
		Endpoints: EndpointConfig{
			BaseURL:   "https://units.glimmerlab.dev",
			StripPath: "/strip/index.html",
			StoryPath: "/story/index.html",
		},
		Widget: WidgetConfig{
			BundleVersion: "1.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Script: ScriptConfig{
			PageTimeout: 5 * time.Second,
		},
	}
}
