// Package logging builds the structured application logger
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/amirphl/estate-settlement/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a logrus logger from the logging configuration.
// File output rotates through lumberjack.
func NewLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return f.Function, fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	}
	log.SetReportCaller(cfg.EnableCaller)

	out, err := newOutput(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(out)

	return log, nil
}

func newOutput(cfg config.LoggingConfig) (io.Writer, error) {
	if cfg.Output == "" || cfg.Output == "stdout" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, file), nil
	}
	return file, nil
}

// Discard returns a logger that drops everything, for tests
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
