package logx

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/identity/pkg/kernel"
)

// Entry allows for building up log entries with multiple fields
type Entry struct {
	logger *Logger
	fields Fields
	err    error
}

func newEntry(logger *Logger) *Entry {
	return &Entry{
		logger: logger,
		fields: make(Fields),
	}
}

// WithField adds a field to the entry (chainable)
func (e *Entry) WithField(key string, value any) *Entry {
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the entry (chainable)
func (e *Entry) WithFields(fields Fields) *Entry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// WithError attaches err (chainable)
func (e *Entry) WithError(err error) *Entry {
	e.err = err
	return e
}

// WithContext copies request_id and connection_id from ctx into the entry.
func (e *Entry) WithContext(ctx context.Context) *Entry {
	if ctx == nil {
		return e
	}
	if id, ok := ctx.Value(kernel.RequestIDKey).(string); ok && id != "" {
		e.fields["request_id"] = id
	}
	if id, ok := ctx.Value(kernel.ConnectionIDKey).(kernel.ConnectionID); ok && !id.IsEmpty() {
		e.fields["connection_id"] = id.String()
	}
	return e
}

func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, msg, e.fields, e.err) }
func (e *Entry) Info(msg string)  { e.logger.log(LevelInfo, msg, e.fields, e.err) }
func (e *Entry) Warn(msg string)  { e.logger.log(LevelWarn, msg, e.fields, e.err) }
func (e *Entry) Error(msg string) { e.logger.log(LevelError, msg, e.fields, e.err) }

func (e *Entry) Debugf(format string, args ...any) {
	e.logger.log(LevelDebug, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Infof(format string, args ...any) {
	e.logger.log(LevelInfo, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Warnf(format string, args ...any) {
	e.logger.log(LevelWarn, fmt.Sprintf(format, args...), e.fields, e.err)
}

func (e *Entry) Errorf(format string, args ...any) {
	e.logger.log(LevelError, fmt.Sprintf(format, args...), e.fields, e.err)
}
