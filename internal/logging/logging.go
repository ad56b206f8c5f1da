package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, file path
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg Config) (*Logger, error) {
	var output io.Writer

	switch cfg.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		output = file
	}

	logger := NewWithWriter(output, cfg.Format, cfg.Level)

	// Set global logger
	log.Logger = logger.logger

	return logger, nil
}

// NewWithWriter builds a logger writing to w without touching the global logger
func NewWithWriter(w io.Writer, format, level string) *Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return &Logger{logger: zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithComponent tags log lines with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

// WithError adds an error to the logger
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// WithRequestID adds a request ID to the logger
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", requestID).Logger()}
}

// WithProjectID adds a project ID to the logger
func (l *Logger) WithProjectID(projectID string) *Logger {
	return &Logger{logger: l.logger.With().Str("project_id", projectID).Logger()}
}

// WithSceneID adds a scene ID to the logger
func (l *Logger) WithSceneID(sceneID string) *Logger {
	return &Logger{logger: l.logger.With().Str("scene_id", sceneID).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// ErrorWithErr logs an error message with an error
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// LogAPIRequest logs an outgoing backend call
func (l *Logger) LogAPIRequest(method, path, requestID string, statusCode int, duration time.Duration, err error) {
	evt := l.logger.Debug()
	if err != nil {
		evt = l.logger.Warn().Err(err)
	}

	evt.
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("API request")
}

// LogHTTPRequest logs an incoming request served by the mock backend
func (l *Logger) LogHTTPRequest(method, path, clientIP string, statusCode int, duration time.Duration) {
	l.logger.Info().
		Str("method", method).
		Str("path", path).
		Str("client_ip", clientIP).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("HTTP request")
}

// LogSceneTransition logs a scene moving between generation states
func (l *Logger) LogSceneTransition(projectID, sceneID, from, to string) {
	l.logger.Info().
		Str("project_id", projectID).
		Str("scene_id", sceneID).
		Str("from", from).
		Str("to", to).
		Msg("Scene status changed")
}

// LogSessionEvent logs a session lifecycle event
func (l *Logger) LogSessionEvent(event, username string, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Warn().Err(err)
	}

	evt.
		Str("event", event).
		Str("username", username).
		Msg("Session event")
}

// LogStorageOperation logs an archive storage operation
func (l *Logger) LogStorageOperation(operation, bucket, key string, size int64, duration time.Duration, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("operation", operation).
		Str("bucket", bucket).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration_ms", duration).
		Msg("Storage operation")
}

// NewConsoleLogger creates a human-readable logger on stderr for
// interactive use. It does not replace the global logger.
func NewConsoleLogger(level string) *Logger {
	return NewWithWriter(os.Stderr, "console", level)
}
