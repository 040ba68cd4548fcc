// Package logging configures zerolog for localroute and carries the logger
// through context.Context with structured fields.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger output.
type Config struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"` // "console" or "json"
	File   FileConfig `mapstructure:"file"`
}

// FileConfig enables a rotating log file next to the console output.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from cfg. The returned closer releases the log file, if any.
func New(cfg Config, console io.Writer) (zerolog.Logger, io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var consoleWriter io.Writer = console
	if cfg.Format != "json" {
		consoleWriter = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	if !cfg.File.Enabled {
		logger := zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
		return logger, nopCloser{}, nil
	}

	if cfg.File.Path == "" {
		return zerolog.Logger{}, nil, fmt.Errorf("log file path is required when file logging is enabled")
	}

	// Create logs directory with secure permissions (0700 - owner only)
	if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0700); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSize,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAge,
		Compress:   cfg.File.Compress,
	}

	// File output is always JSON so it stays machine readable.
	multi := zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	logger := zerolog.New(multi).Level(level).With().Timestamp().Logger()

	return logger, fileWriter, nil
}
