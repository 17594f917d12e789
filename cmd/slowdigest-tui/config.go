package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/logging"
	"github.com/tinytelemetry/slowdigest/internal/model"
)

// tuiConfig holds only TUI-relevant configuration. It reads the same config
// file and environment as slowdigest.
type tuiConfig struct {
	Limit         int           `mapstructure:"limit"`
	Metric        string        `mapstructure:"metric"`
	Timezone      string        `mapstructure:"timezone"`
	Parallel      int           `mapstructure:"parallel"`
	LogFormatFile string        `mapstructure:"log-format-file"`
	MaxLineSize   int           `mapstructure:"max-line-size"`
	CacheSize     int           `mapstructure:"cache-size"`
	QueryTimeout  time.Duration `mapstructure:"query-timeout"`
	SocketPath    string        `mapstructure:"socket"`
	LogLevel      string        `mapstructure:"log-level"`
	LogFile       string        `mapstructure:"log-file"`
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("slowdigest-tui", pflag.ContinueOnError)
	fs.String("config", "", "config file (default is $HOME/.config/slowdigest/config.yml)")
	fs.String("socket", "", "attach to a running slowdigest serve on this Unix socket")
	fs.IntP("limit", "n", 500, "number of queries to list")
	fs.StringP("metric", "m", model.DefaultMetric, fmt.Sprintf("initial ranking metric: %v", digest.Metrics()))
	fs.String("timezone", model.DefaultTimezone, "display timezone: +HH:MM offset, UTC or IANA name")
	fs.IntP("parallel", "p", model.DefaultParallel, "number of sources digested concurrently")
	fs.String("log-format-file", "", "YAML header format definition")
	fs.Int("max-line-size", model.DefaultMaxLineSize, "longest accepted input line in bytes")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-file", logging.DefaultFile("slowdigest-tui"), "log destination (the terminal is owned by the UI)")
	fs.Bool("version", false, "print version information")
	return fs
}

func loadTUIConfig(fs *pflag.FlagSet) (tuiConfig, error) {
	var cfg tuiConfig

	v := viper.New()
	v.SetEnvPrefix("SLOWDIGEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("cache-size", model.DefaultCacheSize)
	v.SetDefault("query-timeout", model.DefaultQueryTimeout)

	configPath, _ := fs.GetString("config")
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

	if err := v.BindPFlags(fs); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.Limit <= 0 {
		return cfg, fmt.Errorf("invalid limit %d: %w", cfg.Limit, digest.ErrInvalidLimit)
	}
	if _, err := digest.ParseMetric(cfg.Metric); err != nil {
		return cfg, err
	}
	return cfg, nil
}
