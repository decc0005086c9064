// Package logger provides structured logging for applydesk
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with applydesk-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a config string to a zerolog level, defaulting to info
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "applydesk").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// SessionLogger returns a logger for one editor session
func (l *Logger) SessionLogger(identity string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "editor").
			Str("identity", identity).
			Logger(),
	}
}

// BackendLogger returns a logger for backend calls
func (l *Logger) BackendLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "backend").
			Logger(),
	}
}

// StoreLogger returns a logger for local store operations
func (l *Logger) StoreLogger(path string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "localstore").
			Str("path", path).
			Logger(),
	}
}

// HTTPLogger returns a logger for the local daemon
func (l *Logger) HTTPLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "http").
			Logger(),
	}
}

// LogBackendCall logs a completed backend call with structured fields
func (l *Logger) LogBackendCall(endpoint string, status int, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.
		Str("component", "backend").
		Str("endpoint", endpoint).
		Int("status", status).
		Dur("duration_ms", duration).
		Msg("Backend call completed")
}

// LogStoreOperation logs a persistence operation with structured fields
func (l *Logger) LogStoreOperation(operation, identity string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Error().Err(err)
	}
	event.
		Str("component", "persist").
		Str("operation", operation).
		Str("identity", identity).
		Dur("duration_ms", duration).
		Msg("Store operation completed")
}

// LogServerStart logs daemon startup
func (l *Logger) LogServerStart(port int, storePath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("port", port).
		Str("store", storePath).
		Msg("applydesk daemon starting")
}

// LogServerReady logs when the daemon is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("applydesk daemon ready to accept connections")
}

// LogServerShutdown logs daemon shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("applydesk daemon shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = globalLogger.zlog
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
