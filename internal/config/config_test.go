package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "https://units.glimmerlab.dev", cfg.Endpoints.BaseURL)
	assert.Equal(t, "/strip/index.html", cfg.Endpoints.StripPath)
	assert.Equal(t, "/story/index.html", cfg.Endpoints.StoryPath)

	assert.Empty(t, cfg.Widget.Token)
	assert.Equal(t, "1.0", cfg.Widget.BundleVersion)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 5*time.Second, cfg.Script.PageTimeout)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                "9100",
		"STRIP_BASE_URL":      "https://staging.glimmerlab.dev",
		"STRIP_PATH":          "/s/index.html",
		"STORY_PATH":          "/x/index.html",
		"STRIP_TOKEN":         "abc123",
		"BUNDLE_VERSION":      "2.4",
		"LOG_LEVEL":           "debug",
		"LOG_DEV":             "true",
		"PAGE_SCRIPT_TIMEOUT": "250ms",
	}

	for key, value := range envVars {
		os.Setenv(key, value)
	}
	defer func() {
		for key := range envVars {
			os.Unsetenv(key)
		}
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "https://staging.glimmerlab.dev", cfg.Endpoints.BaseURL)
	assert.Equal(t, "/s/index.html", cfg.Endpoints.StripPath)
	assert.Equal(t, "/x/index.html", cfg.Endpoints.StoryPath)
	assert.Equal(t, "abc123", cfg.Widget.Token)
	assert.Equal(t, "2.4", cfg.Widget.BundleVersion)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 250*time.Millisecond, cfg.Script.PageTimeout)
}
