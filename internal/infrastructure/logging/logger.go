package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wrenfold/homedeck/internal/infrastructure/config"
)

// Logger is the structured logger handed to every HomeDeck component.
// It embeds slog.Logger; child loggers carry component attributes via
// With. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of config.yaml. Every
// record carries service and version attributes so aggregated dashboard
// and relay logs stay attributable.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "homedeck"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel maps a config level string to slog. Unknown values fall
// back to info rather than failing startup.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// With returns a child logger with additional default attributes, e.g.
// logger.With("component", "mqtt").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a stdout JSON logger at info level, for the startup
// window before config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
