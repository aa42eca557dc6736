package logging

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a printf-style view over a zerolog logger, scoped to one task.
type Logger struct {
	name   string
	scoped atomic.Pointer[scopedLogger]
}

type scopedLogger struct {
	generation uint64
	logger     zerolog.Logger
}

// ForTask returns a logger whose lines carry task=<name>.
func ForTask(name string) *Logger {
	return &Logger{name: name}
}

// Name returns the task scope of the logger.
func (l *Logger) Name() string {
	return l.name
}

// base returns the task-scoped logger, built once per process logger
// configuration.
func (l *Logger) base() *zerolog.Logger {
	gen := generation.Load()
	if s := l.scoped.Load(); s != nil && s.generation == gen {
		return &s.logger
	}
	s := &scopedLogger{generation: gen, logger: log.Logger.With().Str("task", l.name).Logger()}
	l.scoped.Store(s)
	return &s.logger
}

func (l *Logger) Debugf(format string, args ...any) {
	l.base().Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.base().Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.base().Warn().Msgf(format, args...)
}

func (l *Logger) Errf(format string, args ...any) {
	l.base().Error().Msgf(format, args...)
}

// Unhandled records a mailbox message the receiving task has no case for.
func (l *Logger) Unhandled(msg any) {
	l.base().Error().Str("message", fmt.Sprintf("%T", msg)).Msg("unhandled message")
}

func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
