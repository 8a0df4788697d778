package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/amirphl/dialflow/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger. Output goes to stdout, a rotated
// file, or both depending on cfg.Output.
func NewLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.SetOutput(logWriter(cfg.Output, cfg))
	return logger
}

// NewFileLogger is like NewLogger but always writes to path in addition to
// stdout. Used by background workers that keep their own log file.
func NewFileLogger(cfg config.LoggingConfig, path string) *logrus.Logger {
	if path != "" {
		cfg.FilePath = path
	}
	cfg.Output = "both"
	return NewLogger(cfg)
}

func logWriter(output string, cfg config.LoggingConfig) io.Writer {
	if output == "stdout" || cfg.FilePath == "" {
		return os.Stdout
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return os.Stdout
	}
	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if output == "file" {
		return file
	}
	return io.MultiWriter(os.Stdout, file)
}
