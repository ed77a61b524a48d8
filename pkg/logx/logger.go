package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fields is a map of structured data
type Fields map[string]any

// Logger writes leveled, structured log lines.
type Logger struct {
	config   *Config
	mu       sync.Mutex
	writer   io.Writer
	exitFunc func(int)
}

var defaultLogger = NewLogger(LoadFromEnv())

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	writer := config.Output
	if writer == nil {
		writer = os.Stdout
	}
	return &Logger{
		config:   config,
		writer:   writer,
		exitFunc: os.Exit,
	}
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger *Logger) { defaultLogger = logger }

// SetLevel sets the level of the package-level logger.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Level = level
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

func (l *Logger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.config.Level && l.config.Level != LevelOff
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.enabled(level) {
		return
	}

	now := time.Now()
	var caller string
	if l.config.EnableCaller {
		caller = getCaller(3)
	}

	var line []byte
	if l.config.Format == FormatJSON {
		line = l.formatJSON(now, level, msg, caller, fields, err)
	} else {
		line = l.formatConsole(now, level, msg, caller, fields, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, werr := l.writer.Write(line); werr != nil {
		fmt.Fprintf(os.Stderr, "logx: write failed: %v\n", werr)
	}
}

func (l *Logger) formatJSON(ts time.Time, level Level, msg, caller string, fields Fields, err error) []byte {
	data := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		data[k] = v
	}
	data["level"] = level.String()
	data["message"] = msg
	data["timestamp"] = ts.Format(time.RFC3339Nano)
	if caller != "" {
		data["caller"] = caller
	}
	if err != nil {
		data["error"] = err.Error()
	}
	b, merr := json.Marshal(data)
	if merr != nil {
		return []byte(fmt.Sprintf(`{"level":"ERROR","message":"logx: marshal failed: %v"}`+"\n", merr))
	}
	return append(b, '\n')
}

const (
	colorReset = "\033[0m"
	colorGray  = "\033[90m"
	colorCyan  = "\033[36m"
	colorRed   = "\033[31m"
)

var levelColors = map[Level]string{
	LevelDebug: "\033[1;36m",
	LevelInfo:  "\033[1;32m",
	LevelWarn:  "\033[1;33m",
	LevelError: "\033[1;31m",
	LevelFatal: "\033[1;31m",
}

func (l *Logger) formatConsole(ts time.Time, level Level, msg, caller string, fields Fields, err error) []byte {
	color := func(c, s string) string {
		if !l.config.EnableColors {
			return s
		}
		return c + s + colorReset
	}

	var b strings.Builder
	b.WriteString(color(colorGray, ts.Format(l.config.TimeFormat)))
	b.WriteString(" ")
	b.WriteString(color(levelColors[level], fmt.Sprintf("[%-5s]", level.String())))
	b.WriteString(" ")
	if caller != "" {
		b.WriteString(color(colorGray, "["+caller+"] "))
	}
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		b.WriteString(" ")
		b.WriteString(color(colorCyan, strings.Join(pairs, " ")))
	}

	if err != nil {
		b.WriteString("\n")
		b.WriteString(color(colorRed, "  error: "+err.Error()))
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value any) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

// WithContext creates a new entry carrying the correlation ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Entry {
	return newEntry(l).WithContext(ctx)
}

func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Package-level helpers over the default logger.

func Debug(msg string) { defaultLogger.log(LevelDebug, msg, nil, nil) }
func Info(msg string)  { defaultLogger.log(LevelInfo, msg, nil, nil) }
func Warn(msg string)  { defaultLogger.log(LevelWarn, msg, nil, nil) }
func Error(msg string) { defaultLogger.log(LevelError, msg, nil, nil) }

func Debugf(format string, args ...any) {
	defaultLogger.log(LevelDebug, fmt.Sprintf(format, args...), nil, nil)
}

func Infof(format string, args ...any) {
	defaultLogger.log(LevelInfo, fmt.Sprintf(format, args...), nil, nil)
}

func Warnf(format string, args ...any) {
	defaultLogger.log(LevelWarn, fmt.Sprintf(format, args...), nil, nil)
}

func Errorf(format string, args ...any) {
	defaultLogger.log(LevelError, fmt.Sprintf(format, args...), nil, nil)
}

// Fatalf logs and exits the process.
func Fatalf(format string, args ...any) {
	defaultLogger.log(LevelFatal, fmt.Sprintf(format, args...), nil, nil)
	defaultLogger.exitFunc(1)
}

func WithField(key string, value any) *Entry  { return defaultLogger.WithField(key, value) }
func WithFields(fields Fields) *Entry         { return defaultLogger.WithFields(fields) }
func WithError(err error) *Entry              { return defaultLogger.WithError(err) }
func WithContext(ctx context.Context) *Entry  { return defaultLogger.WithContext(ctx) }
