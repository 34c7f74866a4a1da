// Package logger defines the leveled key/value logger used across flatplan.
//
// Library packages accept a Logger and default to Nop. Applications pick a backend:
// New wraps any log/slog handler, and Build produces a zerolog-backed logger
// that can write to a file, a buffer, or stdout.
package logger

import (
	"log/slog"
)

// Logger is a leveled logger taking slog-style key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogHandler adapts a slog.Handler to Logger.
type SlogHandler struct {
	logger *slog.Logger
}

// New returns a Logger writing through h.
func New(h slog.Handler) *SlogHandler {
	return &SlogHandler{logger: slog.New(h)}
}

func (handler *SlogHandler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *SlogHandler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *SlogHandler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *SlogHandler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}

// With returns a logger that adds args to every record.
func (handler *SlogHandler) With(args ...any) *SlogHandler {
	return &SlogHandler{logger: handler.logger.With(args...)}
}

type nop struct{}

func (nop) Error(string, ...any) {}
func (nop) Warn(string, ...any)  {}
func (nop) Info(string, ...any)  {}
func (nop) Debug(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop{}
	}
	return l
}
