// Package logging builds the zap loggers used by the slowdigest binaries.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and destination of a logger.
type Config struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// File, when set, receives JSON logs instead of stderr. The TUI uses
	// this because it owns the terminal.
	File string
	// Console switches the stderr encoder to human-readable output.
	Console bool
}

// New builds a logger from conf. The returned cleanup flushes buffered
// entries and is safe to call when New fails.
func New(conf Config) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if conf.Level != "" {
		l, err := zapcore.ParseLevel(conf.Level)
		if err != nil {
			return zap.NewNop(), func() {}, fmt.Errorf("invalid log level %q: %w", conf.Level, err)
		}
		level.SetLevel(l)
	}

	var zc zap.Config
	if conf.Console && conf.File == "" {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if conf.File != "" {
		if err := os.MkdirAll(filepath.Dir(conf.File), 0o755); err != nil {
			return zap.NewNop(), func() {}, fmt.Errorf("creating log dir: %w", err)
		}
		zc.OutputPaths = []string{conf.File}
		zc.ErrorOutputPaths = []string{conf.File}
	}

	logger, err := zc.Build()
	if err != nil {
		return zap.NewNop(), func() {}, fmt.Errorf("building logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// DefaultFile returns ~/.local/state/slowdigest/<name>.log, or "" when the
// home directory is unknown.
func DefaultFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "slowdigest", name+".log")
}
