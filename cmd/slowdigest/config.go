package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/httpserver"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
	"github.com/tinytelemetry/slowdigest/internal/socketrpc"
)

const (
	defaultLimit        = model.DefaultLimit
	defaultMetric       = model.DefaultMetric
	defaultFormat       = model.DefaultFormat
	defaultTimezone     = model.DefaultTimezone
	defaultParallel     = model.DefaultParallel
	defaultMaxLineSize  = model.DefaultMaxLineSize
	defaultCacheSize    = model.DefaultCacheSize
	defaultQueryTimeout = model.DefaultQueryTimeout
	defaultAddr         = httpserver.DefaultAddr
	defaultLogLevel     = "warn"
)

// defaultSocketPath is a var so tests can point serve at a temp dir.
var defaultSocketPath = socketrpc.DefaultSocketPath

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Limit         int           `mapstructure:"limit"`
	Metric        string        `mapstructure:"metric"`
	Format        string        `mapstructure:"format"`
	Output        string        `mapstructure:"output"`
	Timezone      string        `mapstructure:"timezone"`
	Parallel      int           `mapstructure:"parallel"`
	LogFormatFile string        `mapstructure:"log-format-file"`
	MaxLineSize   int           `mapstructure:"max-line-size"`
	CacheSize     int           `mapstructure:"cache-size"`
	Addr          string        `mapstructure:"addr"`
	SocketPath    string        `mapstructure:"socket"`
	QueryTimeout  time.Duration `mapstructure:"query-timeout"`
	LogLevel      string        `mapstructure:"log-level"`
	ConfigPath    string        `mapstructure:"-"` // not from config file
}

// loadConfig merges, lowest first: defaults, the config file,
// SLOWDIGEST_* environment variables and flags set on cmd.
func loadConfig(cmd *cobra.Command) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("SLOWDIGEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("limit", defaultLimit)
	v.SetDefault("metric", defaultMetric)
	v.SetDefault("format", defaultFormat)
	v.SetDefault("output", "")
	v.SetDefault("timezone", defaultTimezone)
	v.SetDefault("parallel", defaultParallel)
	v.SetDefault("log-format-file", "")
	v.SetDefault("max-line-size", defaultMaxLineSize)
	v.SetDefault("cache-size", defaultCacheSize)
	v.SetDefault("addr", defaultAddr)
	v.SetDefault("socket", defaultSocketPath())
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("log-level", defaultLogLevel)

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "slowdigest", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	return cfg, cfg.validate()
}

// validate rejects settings that would fail only after input was read.
func (c appConfig) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("invalid limit %d: %w", c.Limit, digest.ErrInvalidLimit)
	}
	if _, err := digest.ParseMetric(c.Metric); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Parallel <= 0 {
		return fmt.Errorf("invalid parallel %d: must be at least 1", c.Parallel)
	}
	if c.MaxLineSize <= 0 {
		return fmt.Errorf("invalid max-line-size %d: must be positive", c.MaxLineSize)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("invalid cache-size %d: must not be negative", c.CacheSize)
	}
	return nil
}
