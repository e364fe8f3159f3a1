// Package logger provides a unified logging system for AggDB
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the log level
type Level int

const (
	// LevelDebug for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo for general informational messages
	LevelInfo
	// LevelWarn for warning messages
	LevelWarn
	// LevelError for error messages
	LevelError
	// LevelSilent disables all logging
	LevelSilent
)

// String returns the string representation of the log level
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
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "silent", "SILENT":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Config represents logger configuration
type Config struct {
	// Level is the minimum log level to output
	Level Level
	// Output specifies where to write logs: "stdout", "stderr", or a file path
	Output string
	// Format specifies log format: "text" or "json"
	Format string
	// File rotation settings (only used when Output is a file path)
	MaxSize    int  // megabytes
	MaxBackups int  // number of backups to keep
	MaxAge     int  // days
	Compress   bool // compress rotated files
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Output:     "stdout",
		Format:     "text",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}
}

// Logger is a leveled logger writing text or JSON lines
type Logger struct {
	mu     sync.Mutex
	level  Level
	out    io.Writer
	format string
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Init initializes the global logger with the given configuration
func Init(cfg *Config) error {
	l, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
	return nil
}

// NewLogger creates a new logger with the given configuration
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var out io.Writer
	switch cfg.Output {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		// File output with rotation
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
	}

	return &Logger{
		level:  cfg.Level,
		out:    out,
		format: cfg.Format,
	}, nil
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

// logf writes one log line if the level is enabled
func (l *Logger) logf(level Level, format string, v ...interface{}) {
	if !l.IsLevelEnabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.format == "json" {
		entry := map[string]interface{}{
			"timestamp": now.Format("2006-01-02T15:04:05.000000Z07:00"),
			"level":     level.String(),
			"message":   msg,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.out, "[%s] %s\n", level, msg)
			return
		}
		fmt.Fprintln(l.out, string(data))
		return
	}
	fmt.Fprintf(l.out, "%s [%s] %s\n", now.Format("2006-01-02 15:04:05.000000"), level, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) { l.logf(LevelInfo, format, v...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) { l.logf(LevelWarn, format, v...) }

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

// Global logger functions

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}

// SetLevel changes the global logger level
func SetLevel(level Level) {
	GetGlobalLogger().SetLevel(level)
}

// Debug logs a debug message using the global logger
func Debug(format string, v ...interface{}) {
	GetGlobalLogger().Debug(format, v...)
}

// Info logs an info message using the global logger
func Info(format string, v ...interface{}) {
	GetGlobalLogger().Info(format, v...)
}

// Warn logs a warning message using the global logger
func Warn(format string, v ...interface{}) {
	GetGlobalLogger().Warn(format, v...)
}

// Error logs an error message using the global logger
func Error(format string, v ...interface{}) {
	GetGlobalLogger().Error(format, v...)
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return GetGlobalLogger().IsLevelEnabled(LevelDebug)
}
