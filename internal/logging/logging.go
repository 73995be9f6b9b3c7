// Package logging adapts go.uber.org/zap to the narrow Info/Warn/Error/Debug
// shape github.com/GoCodeAlone/modular's Logger interface and every internal
// package (scheduler, subscriber, httpapi) expect. The examples wire
// log/slog directly into modular.WithLogger because slog's method set
// already matches; zap.SugaredLogger instead exposes Infow/Warnw/Errorw/
// Debugw, so this thin wrapper is the only translation needed.
package logging

import (
	"go.uber.org/zap"
)

// Logger adapts a *zap.SugaredLogger to modular.Logger.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production zap logger (JSON encoding, epoch-seconds timestamps) and
// wraps it.
func New() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// Wrap adapts an already-constructed zap logger, letting callers such as
// tests supply a logger built from their own zap.Config.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{s: z.Sugar()}
}

func (l *Logger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }

// Sync flushes any buffered log entries; call it before process exit.
func (l *Logger) Sync() error { return l.s.Sync() }
