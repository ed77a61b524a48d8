package logx

import (
	"io"
	"os"
	"strings"
	"time"
)

// Format represents the output format
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config holds the logger configuration
type Config struct {
	Level        Level
	Format       Format
	EnableColors bool
	EnableCaller bool
	TimeFormat   string

	// Output defaults to os.Stdout
	Output io.Writer
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:        LevelInfo,
		Format:       FormatConsole,
		EnableColors: true,
		TimeFormat:   time.RFC3339,
		Output:       os.Stdout,
	}
}

// LoadFromEnv loads configuration from LOG_LEVEL, LOG_FORMAT, LOG_COLOR
// and LOG_CALLER.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = ParseLevel(level)
	}

	if format := os.Getenv("LOG_FORMAT"); strings.EqualFold(format, "json") {
		config.Format = FormatJSON
	}

	if color := os.Getenv("LOG_COLOR"); color != "" {
		config.EnableColors = parseBool(color)
	}

	if caller := os.Getenv("LOG_CALLER"); caller != "" {
		config.EnableCaller = parseBool(caller)
	}

	return config
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Level represents logging level
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	case "OFF":
		return LevelOff
	default:
		return LevelInfo
	}
}
