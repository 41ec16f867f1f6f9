package bootstrap

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// LoggerOptions configures logger initialization
type LoggerOptions struct {
	Level       string
	Environment string
}

// InitLogger creates a configured logger instance and installs it as the
// process default.
func InitLogger(opts LoggerOptions) *slog.Logger {
	level := slog.LevelInfo
	switch opts.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var logger *slog.Logger
	if opts.Environment != "production" {
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}

	slog.SetDefault(logger)

	return logger
}
