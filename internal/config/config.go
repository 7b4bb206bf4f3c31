// Package config loads vibebridge settings from defaults, an optional
// config file and VIBEBRIDGE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Host    HostConfig    `mapstructure:"host" yaml:"host"`
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime"`
	Export  ExportConfig  `mapstructure:"export" yaml:"export"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
}

// LoggerConfig controls the zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color for each level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// HostConfig sizes the headless native host and its frame loop.
type HostConfig struct {
	ViewportWidth   int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	FrameInterval   time.Duration `mapstructure:"frame_interval" yaml:"frame_interval"`
	// MaxExportPixels bounds width*height of exported images.
	MaxExportPixels int           `mapstructure:"max_export_pixels" yaml:"max_export_pixels"`
}

// RuntimeConfig controls script execution.
type RuntimeConfig struct {
	ContextID int32         `mapstructure:"context_id" yaml:"context_id"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ExportConfig controls element snapshots written by the CLI.
type ExportConfig struct {
	DevicePixelRatio float64 `mapstructure:"device_pixel_ratio" yaml:"device_pixel_ratio"`
}

// NetworkConfig controls how remote pages and their scripts are fetched.
type NetworkConfig struct {
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
}

// EnvPrefix is the prefix for environment overrides, e.g.
// VIBEBRIDGE_HOST_VIEWPORT_WIDTH.
const EnvPrefix = "VIBEBRIDGE"

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "vibebridge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Host --
	v.SetDefault("host.viewport_width", 800)
	v.SetDefault("host.viewport_height", 600)
	v.SetDefault("host.frame_interval", "16ms")
	v.SetDefault("host.max_export_pixels", 1<<24)

	// -- Runtime --
	v.SetDefault("runtime.context_id", 0)
	v.SetDefault("runtime.timeout", "30s")

	// -- Export --
	v.SetDefault("export.device_pixel_ratio", 1.0)

	// -- Network --
	v.SetDefault("network.user_agent", "vibebridge")
	v.SetDefault("network.timeout", "15s")
	v.SetDefault("network.max_redirects", 10)
}

// NewDefaultConfig returns a Config holding only the defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// BindEnv makes v consult VIBEBRIDGE_* variables for every key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper decodes and validates v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load builds a Config from defaults, the file at path (if any) and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}
	return NewConfigFromViper(v)
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Host.ViewportWidth <= 0 || c.Host.ViewportHeight <= 0 {
		return fmt.Errorf("host viewport must be positive, got %dx%d", c.Host.ViewportWidth, c.Host.ViewportHeight)
	}
	if c.Host.FrameInterval <= 0 {
		return fmt.Errorf("host.frame_interval must be a positive duration")
	}
	if c.Host.MaxExportPixels <= 0 {
		return fmt.Errorf("host.max_export_pixels must be positive")
	}
	if c.Runtime.Timeout <= 0 {
		return fmt.Errorf("runtime.timeout must be a positive duration")
	}
	if c.Export.DevicePixelRatio <= 0 {
		return fmt.Errorf("export.device_pixel_ratio must be greater than 0")
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.Network.MaxRedirects < 0 {
		return fmt.Errorf("network.max_redirects must not be negative")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}
