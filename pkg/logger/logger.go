// Package logger builds the process-wide structured loggers.
//
// Application code logs through *slog.Logger. Each component narrows the
// logger with Scope so log lines can be filtered per subsystem:
//
//	log = log.With(logger.Scope("notifications.worker"))
//	log.Warn("receive failed", logger.Error(err))
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewHTTPLogger,
		NewZapLogger,
	),
)

// Scope returns the attribute used to tag log lines with a component name
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns the attribute used to attach an error to a log line
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger creates the application logger.
// LOG_LEVEL selects the level (debug, info, warn/warning, error; default info).
// GO_ENV=production switches to JSON output.
func NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// NewZapLogger creates the zap logger used by the migrator
func NewZapLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if os.Getenv("GO_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(parseLevel(os.Getenv("LOG_LEVEL"))))
	return cfg.Build()
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
