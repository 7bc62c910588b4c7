package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	// SilentLevel suppresses everything, used by headless runs and tests
	SilentLevel
)

// Color codes for different log levels
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// logger implements the Logger interface. Derived loggers share the
// parent's output lock so concurrent tick workers never interleave lines.
type logger struct {
	out      *output
	level    Level
	fields   map[string]interface{}
	prefix   string
	noColor  bool
	showTime bool
}

type output struct {
	mu     sync.Mutex
	writer io.Writer
}

// Default logger instance
var defaultLogger = New()

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

// New creates a new logger with default configuration
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		ShowTime: true,
	})
}

// NewWithConfig creates a new logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	return &logger{
		out:      &output{writer: w},
		level:    cfg.Level,
		fields:   make(map[string]interface{}),
		noColor:  cfg.NoColor,
		showTime: cfg.ShowTime,
	}
}

// Discard returns a logger that drops every message
func Discard() Logger {
	return NewWithConfig(Config{Level: SilentLevel, Writer: io.Discard, NoColor: true})
}

// Default returns the package-level logger
func Default() Logger { return defaultLogger }

// SetLevel sets the global log level
func SetLevel(level Level) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.level = level
		l.out.mu.Unlock()
	}
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.noColor = noColor
		l.out.mu.Unlock()
	}
}

// SetOutput redirects the global logger
func SetOutput(w io.Writer) {
	if l, ok := defaultLogger.(*logger); ok {
		l.out.mu.Lock()
		l.out.writer = w
		l.out.mu.Unlock()
	}
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

func (l *logger) enabled(level Level) bool {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	return level >= l.level && l.level != SilentLevel
}

func (l *logger) log(level Level, args ...interface{}) {
	if !l.enabled(level) {
		return
	}

	var parts []string

	if l.showTime {
		parts = append(parts, l.paint(colorGray, time.Now().Format("15:04:05")))
	}

	levelStr, levelColor := level.label()
	parts = append(parts, l.paint(levelColor, levelStr))

	if l.prefix != "" {
		parts = append(parts, l.paint(colorCyan, "["+l.prefix+"]"))
	}

	// Fields are sorted so repeated runs produce identical logs
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, l.paint(colorGray, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, fmt.Sprint(args...))

	l.out.mu.Lock()
	_, _ = fmt.Fprintln(l.out.writer, strings.Join(parts, " "))
	l.out.mu.Unlock()

	if level == FatalLevel {
		os.Exit(1)
	}
}

func (l *logger) paint(color, s string) string {
	if l.noColor {
		return s
	}
	return color + s + colorReset
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.log(level, fmt.Sprintf(format, args...))
}

func (level Level) label() (string, string) {
	switch level {
	case DebugLevel:
		return "DEBUG", colorGray
	case InfoLevel:
		return "INFO ", colorGreen
	case WarnLevel:
		return "WARN ", colorYellow
	case ErrorLevel:
		return "ERROR", colorRed
	case FatalLevel:
		return "FATAL", colorRed + colorBold
	default:
		return "UNKNOWN", colorReset
	}
}

// String returns the lowercase level name accepted by ParseLevel
func (level Level) String() string {
	switch level {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	case SilentLevel:
		return "silent"
	default:
		return "unknown"
	}
}

func (l *logger) Debug(args ...interface{}) { l.log(DebugLevel, args...) }

func (l *logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }

func (l *logger) Info(args ...interface{}) { l.log(InfoLevel, args...) }

func (l *logger) Infof(format string, args ...interface{}) { l.logf(InfoLevel, format, args...) }

func (l *logger) Warn(args ...interface{}) { l.log(WarnLevel, args...) }

func (l *logger) Warnf(format string, args ...interface{}) { l.logf(WarnLevel, format, args...) }

func (l *logger) Error(args ...interface{}) { l.log(ErrorLevel, args...) }

func (l *logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }

func (l *logger) Fatal(args ...interface{}) { l.log(FatalLevel, args...) }

func (l *logger) Fatalf(format string, args ...interface{}) { l.logf(FatalLevel, format, args...) }

// derive copies the logger so children never mutate the parent's fields
func (l *logger) derive() *logger {
	child := &logger{
		out:      l.out,
		level:    l.level,
		fields:   make(map[string]interface{}, len(l.fields)),
		prefix:   l.prefix,
		noColor:  l.noColor,
		showTime: l.showTime,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	return child
}

func (l *logger) WithField(key string, value interface{}) Logger {
	child := l.derive()
	child.fields[key] = value
	return child
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	child := l.derive()
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *logger) WithPrefix(prefix string) Logger {
	child := l.derive()
	child.prefix = prefix
	return child
}

// ParseLevel parses a string log level
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	case "silent", "off", "none":
		return SilentLevel
	default:
		return InfoLevel
	}
}
