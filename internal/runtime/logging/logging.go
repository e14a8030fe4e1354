package logging

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs used by queueflow.
type LogFields map[string]any

// ServiceLogger is the minimal logging contract required by the queue client.
// Every call carries a level, a message, and a set of fields.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLoggerAdapter captures the capabilities required by
// NewEntryServiceLogger. The constraint is generic so entry-like loggers
// whose methods return their own concrete type (logrus.Entry and friends)
// can be used without wrappers.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Warn(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

var logLevelMapping = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// NewSlogServiceLogger wraps a slog.Logger so it satisfies ServiceLogger.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("queueflow: slog logger cannot be nil")
	}
	return &watermillServiceLogger{
		inner: watermill.NewSlogLoggerWithLevelMapping(log, logLevelMapping),
		warn:  log,
	}
}

// NewWatermillServiceLogger wraps an existing Watermill LoggerAdapter. Warn
// calls are emitted at info level with a severity field because the adapter
// has no warn level of its own.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("queueflow: watermill logger cannot be nil")
	}
	return &watermillServiceLogger{inner: logger}
}

// NopLogger discards everything.
func NopLogger() ServiceLogger {
	return &watermillServiceLogger{inner: watermill.NopLogger{}}
}

// NewEntryServiceLogger wraps an entry logger (for example a logrus.Entry).
func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	if any(entry) == nil {
		panic("queueflow: entry logger cannot be nil")
	}
	return &entryServiceLogger[T]{entry: entry}
}

type watermillServiceLogger struct {
	inner  watermill.LoggerAdapter
	warn   *slog.Logger
	fields LogFields
}

type entryServiceLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e *entryServiceLogger[T]) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return e
	}
	return &entryServiceLogger[T]{entry: applyEntryFields(e.entry, fields)}
}

func (e *entryServiceLogger[T]) Debug(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Debug(msg)
}

func (e *entryServiceLogger[T]) Info(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Info(msg)
}

func (e *entryServiceLogger[T]) Warn(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Warn(msg)
}

func (e *entryServiceLogger[T]) Error(msg string, err error, fields LogFields) {
	logger := applyEntryFields(e.entry, fields)
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Error(msg)
}

func (e *entryServiceLogger[T]) Trace(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Trace(msg)
}

func (w *watermillServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return w
	}
	return &watermillServiceLogger{
		inner:  w.inner.With(toWatermillFields(fields)),
		warn:   w.warn,
		fields: mergeFields(w.fields, fields),
	}
}

func (w *watermillServiceLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Warn(msg string, fields LogFields) {
	if w.warn != nil {
		w.warn.Warn(msg, slogArgs(mergeFields(w.fields, fields))...)
		return
	}
	w.inner.Info(msg, toWatermillFields(mergeFields(fields, LogFields{"severity": "warn"})))
}

func (w *watermillServiceLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func mergeFields(base, extra LogFields) LogFields {
	if len(base) == 0 {
		return extra
	}
	merged := make(LogFields, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

func slogArgs(fields LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}

func applyEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	if len(fields) == 0 || any(entry) == nil {
		return entry
	}
	enriched := entry
	for key, value := range fields {
		enriched = enriched.WithField(key, value)
	}
	return enriched
}
