// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"example.com/streak/internal/config"
)

// Setup configures the standard logrus logger from cfg and returns it. When a log file is
// configured, output goes to both stdout and a rotating file.
func Setup(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.StandardLogger()
	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(GetLevel(cfg.Level))

	if cfg.File == "" {
		logger.SetOutput(os.Stdout)
		return logger
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:  cfg.File,
		MaxSize:   50, // megabytes
		MaxAge:    30, // days
		LocalTime: false,
		Compress:  true,
	}))
	logger.WithField("file", cfg.File).Info("writing logs to file and stdout")
	return logger
}

// GetLevel parses a level name, defaulting to info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
