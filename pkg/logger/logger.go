// Package logger defines the logging interface used across the driver, plus
// adapters for log/slog handlers and zerolog.
package logger

import (
	"log/slog"

	"github.com/rs/zerolog"
)

// Logger accepts a message and slog-style alternating key/value arguments.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogLogger adapts a slog.Handler to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// New creates a Logger backed by the given slog handler.
func New(handler slog.Handler) *SlogLogger {
	return &SlogLogger{logger: slog.New(handler)}
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerolog creates a Logger backed by the given zerolog logger.
func NewZerolog(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (l *ZerologLogger) Debug(msg string, args ...any) { emit(l.logger.Debug(), msg, args) }
func (l *ZerologLogger) Info(msg string, args ...any)  { emit(l.logger.Info(), msg, args) }
func (l *ZerologLogger) Warn(msg string, args ...any)  { emit(l.logger.Warn(), msg, args) }
func (l *ZerologLogger) Error(msg string, args ...any) { emit(l.logger.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			ev = ev.Interface("arg", args[i])
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
