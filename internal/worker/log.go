package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// LogLevel is the severity of a log message.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger defines an interface for logging at different severity levels.
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string, args ...any)
	// Info logs a message at info level.
	Info(msg string, args ...any)
	// Warn logs a message at warning level.
	Warn(msg string, args ...any)
	// Error logs a message at error level.
	Error(msg string, args ...any)
}

// LogConfig configures the logging metrics collector.
type LogConfig struct {
	// Logger defaults to slog.Default().
	Logger Logger

	// Args are added to every message.
	Args []any

	// LevelSuccess defaults to debug, LevelCancel to warn and
	// LevelFailure to error.
	LevelSuccess LogLevel
	LevelCancel  LogLevel
	LevelFailure LogLevel

	MessageSuccess string
	MessageCancel  string
	MessageFailure string

	// Disabled turns the collector off.
	Disabled bool
}

func (c LogConfig) parse() LogConfig {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.LevelSuccess = orLevel(c.LevelSuccess, LogLevelDebug)
	c.LevelCancel = orLevel(c.LevelCancel, LogLevelWarn)
	c.LevelFailure = orLevel(c.LevelFailure, LogLevelError)
	if c.MessageSuccess == "" {
		c.MessageSuccess = "worker: success"
	}
	if c.MessageCancel == "" {
		c.MessageCancel = "worker: cancel"
	}
	if c.MessageFailure == "" {
		c.MessageFailure = "worker: failure"
	}
	return c
}

func orLevel(level, fallback LogLevel) LogLevel {
	level = LogLevel(strings.ToLower(string(level)))
	if level == "" {
		return fallback
	}
	return level
}

func logFunc(level LogLevel, log Logger) func(msg string, args ...any) {
	switch level {
	case LogLevelDebug:
		return log.Debug
	case LogLevelWarn:
		return log.Warn
	case LogLevelError:
		return log.Error
	default:
		return log.Info
	}
}

// NewLogCollector returns a MetricsCollector that logs every invocation,
// or nil if logging is disabled.
func NewLogCollector(cfg LogConfig) MetricsCollector {
	if cfg.Disabled {
		return nil
	}
	cfg = cfg.parse()
	logSuccess := logFunc(cfg.LevelSuccess, cfg.Logger)
	logCancel := logFunc(cfg.LevelCancel, cfg.Logger)
	logFailure := logFunc(cfg.LevelFailure, cfg.Logger)

	return func(m *Metrics) {
		args := make([]any, 0, len(cfg.Args)+len(m.Metadata)*2+4)
		args = append(args, cfg.Args...)
		args = append(args, m.Metadata.Args()...)
		switch {
		case m.Error == nil:
			logSuccess(cfg.MessageSuccess, append(args, "duration", m.Duration)...)
		case errors.Is(m.Error, context.Canceled) || errors.Is(m.Error, context.DeadlineExceeded):
			logCancel(cfg.MessageCancel, append(args, "error", m.Error)...)
		default:
			logFailure(cfg.MessageFailure, append(args, "error", m.Error, "duration", m.Duration)...)
		}
	}
}
