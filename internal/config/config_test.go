package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "vibebridge", cfg.Logger.ServiceName)
	assert.Equal(t, "green", cfg.Logger.Colors.Info)
	assert.Equal(t, 800, cfg.Host.ViewportWidth)
	assert.Equal(t, 600, cfg.Host.ViewportHeight)
	assert.Equal(t, 16*time.Millisecond, cfg.Host.FrameInterval)
	assert.Equal(t, 1<<24, cfg.Host.MaxExportPixels)
	assert.Equal(t, 30*time.Second, cfg.Runtime.Timeout)
	assert.Equal(t, 1.0, cfg.Export.DevicePixelRatio)
	assert.Equal(t, "vibebridge", cfg.Network.UserAgent)
	assert.Equal(t, 15*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 10, cfg.Network.MaxRedirects)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vibebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  format: json
host:
  viewport_width: 1024
  frame_interval: 8ms
export:
  device_pixel_ratio: 2
`), 0o600))

	t.Setenv("VIBEBRIDGE_HOST_VIEWPORT_HEIGHT", "768")
	t.Setenv("VIBEBRIDGE_RUNTIME_CONTEXT_ID", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 1024, cfg.Host.ViewportWidth)
	assert.Equal(t, 768, cfg.Host.ViewportHeight)
	assert.Equal(t, 8*time.Millisecond, cfg.Host.FrameInterval)
	assert.EqualValues(t, 7, cfg.Runtime.ContextID)
	assert.Equal(t, 2.0, cfg.Export.DevicePixelRatio)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero width", func(c *Config) { c.Host.ViewportWidth = 0 }, "viewport must be positive"},
		{"zero frame interval", func(c *Config) { c.Host.FrameInterval = 0 }, "frame_interval"},
		{"zero export budget", func(c *Config) { c.Host.MaxExportPixels = 0 }, "max_export_pixels"},
		{"zero timeout", func(c *Config) { c.Runtime.Timeout = 0 }, "runtime.timeout"},
		{"negative dpr", func(c *Config) { c.Export.DevicePixelRatio = -1 }, "device_pixel_ratio"},
		{"zero network timeout", func(c *Config) { c.Network.Timeout = 0 }, "network.timeout"},
		{"negative redirects", func(c *Config) { c.Network.MaxRedirects = -1 }, "max_redirects"},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("host.viewport_width", -5)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
