// Package config loads framebridge settings from defaults, an optional YAML
// file and FRAMEBRIDGE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FRAMEBRIDGE_LOG_LEVEL.
const EnvPrefix = "FRAMEBRIDGE"

// Config holds application configuration.
type Config struct {
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogConfig     `mapstructure:"log"`
	Host    HostConfig    `mapstructure:"host"`
}

// JournalConfig holds sqlite settings.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HostConfig holds host loop settings.
type HostConfig struct {
	TickRate time.Duration `mapstructure:"tick_rate"`
	Frames   int           `mapstructure:"frames"`
	Workers  int           `mapstructure:"workers"`
}

// Load reads configuration. The file is FRAMEBRIDGE_CONFIG if set, otherwise
// framebridge.yaml in the working directory or ~/.config/framebridge.
// A missing file is not an error unless FRAMEBRIDGE_CONFIG names it.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("journal.path", "framebridge.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("host.tick_rate", time.Second/60)
	v.SetDefault("host.frames", 0)
	v.SetDefault("host.workers", 4)

	v.SetConfigType("yaml")

	if cfgPath := os.Getenv(EnvPrefix + "_CONFIG"); cfgPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("framebridge")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "framebridge"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the rest of the program cannot use.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Host.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("host.tick_rate must be positive, got %s", c.Host.TickRate))
	}
	if c.Host.Frames < 0 {
		errs = append(errs, fmt.Errorf("host.frames must be >= 0, got %d", c.Host.Frames))
	}
	if c.Host.Workers < 1 {
		errs = append(errs, fmt.Errorf("host.workers must be >= 1, got %d", c.Host.Workers))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
