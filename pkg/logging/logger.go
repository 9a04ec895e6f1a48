package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/cwbeacon/pkg/config"
	"gopkg.in/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries structured key/value context for a log line
type Fields map[string]interface{}

// Logger writes component-tagged lines to the console and an optional rotating file
type Logger struct {
	level      LogLevel
	structured bool
	outputs    []*log.Logger
	rotating   *lumberjack.Logger
	now        func() time.Time
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.Config) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
		now:        time.Now,
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotating = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize,    // megabytes
			MaxBackups: cfg.Logging.MaxBackups, // number of backups
			MaxAge:     cfg.Logging.MaxAge,     // days
			Compress:   cfg.Logging.Compress,
		}
		logger.outputs = append(logger.outputs, log.New(logger.rotating, "", 0))
	}

	// Console output is kept whenever there is no file to write to
	if cfg.Logging.Console || logger.rotating == nil {
		logger.outputs = append(logger.outputs, log.New(os.Stdout, "", 0))
	}

	return logger, nil
}

// NewWriterLogger creates a logger writing to w only
func NewWriterLogger(w io.Writer, level LogLevel, structured bool) *Logger {
	return &Logger{
		level:      level,
		structured: structured,
		outputs:    []*log.Logger{log.New(w, "", 0)},
		now:        time.Now,
	}
}

// Close closes the rotating log file, if any
func (l *Logger) Close() error {
	if l.rotating != nil {
		return l.rotating.Close()
	}
	return nil
}

func (l *Logger) format(level LogLevel, component, message string, fields Fields) string {
	timestamp := l.now().Format("2006-01-02 15:04:05.000")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if l.structured {
		var b strings.Builder
		fmt.Fprintf(&b, `{"time":%q,"level":%q,"component":%q,"message":%q`,
			timestamp, level.String(), component, message)
		for _, k := range keys {
			fmt.Fprintf(&b, `,%q:%q`, k, fmt.Sprint(fields[k]))
		}
		b.WriteString("}")
		return b.String()
	}

	line := fmt.Sprintf("%s [%s] %s: %s", timestamp, level.String(), component, message)
	if len(keys) > 0 {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " [" + strings.Join(parts, " ") + "]"
	}
	return line
}

func (l *Logger) log(level LogLevel, component, message string, fields Fields) {
	if level < l.level {
		return
	}

	line := l.format(level, component, message, fields)
	for _, out := range l.outputs {
		out.Println(line)
	}
}

func firstFields(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, fields ...Fields) {
	l.log(LevelDebug, component, message, firstFields(fields))
}

// Info logs an info message
func (l *Logger) Info(component, message string, fields ...Fields) {
	l.log(LevelInfo, component, message, firstFields(fields))
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, fields ...Fields) {
	l.log(LevelWarn, component, message, firstFields(fields))
}

// Error logs an error message
func (l *Logger) Error(component, message string, fields ...Fields) {
	l.log(LevelError, component, message, firstFields(fields))
}

// Infof logs a formatted info message
func (l *Logger) Infof(component, format string, args ...interface{}) {
	l.log(LevelInfo, component, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(component, format string, args ...interface{}) {
	l.log(LevelWarn, component, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(component, format string, args ...interface{}) {
	l.log(LevelError, component, fmt.Sprintf(format, args...), nil)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(component, format string, args ...interface{}) {
	l.log(LevelDebug, component, fmt.Sprintf(format, args...), nil)
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg *config.Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger, falling back to console info logging
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}
	return NewWriterLogger(os.Stdout, LevelInfo, false)
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

func Debug(component, message string, fields ...Fields) {
	GetGlobalLogger().Debug(component, message, fields...)
}

func Info(component, message string, fields ...Fields) {
	GetGlobalLogger().Info(component, message, fields...)
}

func Warn(component, message string, fields ...Fields) {
	GetGlobalLogger().Warn(component, message, fields...)
}

func Error(component, message string, fields ...Fields) {
	GetGlobalLogger().Error(component, message, fields...)
}

func Debugf(component, format string, args ...interface{}) {
	GetGlobalLogger().Debugf(component, format, args...)
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().Infof(component, format, args...)
}

func Warnf(component, format string, args ...interface{}) {
	GetGlobalLogger().Warnf(component, format, args...)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().Errorf(component, format, args...)
}
