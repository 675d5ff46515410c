package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a LOG_LEVEL value to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Config selects where entries go. Filename "stdout", "-" or "" writes to
// standard output; anything else is a rotating file.
type Config struct {
	Filename string

	// Rotation, in megabytes and days.
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	LocalTime  bool

	Level Level

	// Output overrides Filename. Tests use it to capture entries.
	Output io.Writer
}

// DefaultConfig keeps three compressed backups of up to 100 MB for four weeks.
func DefaultConfig(filename string) Config {
	return Config{
		Filename:   filename,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		LocalTime:  true,
		Level:      INFO,
	}
}

// sink is shared by a logger and every child derived with WithField.
type sink struct {
	mu      sync.Mutex
	out     io.Writer
	rotator *lumberjack.Logger
}

func (s *sink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, line)
}

func openSink(cfg Config) (*sink, error) {
	switch {
	case cfg.Output != nil:
		return &sink{out: cfg.Output}, nil
	case cfg.Filename == "" || cfg.Filename == "-" || cfg.Filename == "stdout":
		return &sink{out: os.Stdout}, nil
	}

	dir := filepath.Dir(cfg.Filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}
	return &sink{out: rotator, rotator: rotator}, nil
}

// Logger writes levelled entries with sorted key=value fields:
//
//	[2006-01-02 15:04:05.000] WARN: message | key=value | other=value
type Logger struct {
	sink   *sink
	level  Level
	fields map[string]any
}

func NewWithConfig(cfg Config) (*Logger, error) {
	s, err := openSink(cfg)
	if err != nil {
		return nil, err
	}
	return &Logger{sink: s, level: cfg.Level}, nil
}

// Writer is the destination of this logger. The HTTP access log shares it.
func (l *Logger) Writer() io.Writer {
	return l.sink.out
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.sink.rotator != nil {
		return l.sink.rotator.Close()
	}
	return nil
}

func (l *Logger) with(extra map[string]any) *Logger {
	fields := make(map[string]any, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &Logger{sink: l.sink, level: l.level, fields: fields}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return l.with(map[string]any{key: value})
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return l.with(fields)
}

func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err)
}

// WithUser tags the entry with the dashboard account it concerns.
func (l *Logger) WithUser(username string) *Logger {
	return l.WithField("user", username)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if level < l.level {
		return
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(time.Now().Format("2006-01-02 15:04:05.000"))
	b.WriteString("] ")
	b.WriteString(level.String())
	b.WriteString(": ")
	if len(args) > 0 {
		fmt.Fprintf(&b, msg, args...)
	} else {
		b.WriteString(msg)
	}

	keys := make([]string, 0, len(l.fields))
	for k := range l.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" | ")
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatValue(l.fields[k]))
	}
	b.WriteByte('\n')

	l.sink.write(b.String())
}

func (l *Logger) Debug(msg string, args ...any) { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(INFO, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(WARN, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(ERROR, msg, args...) }

var defaultLogger atomic.Pointer[Logger]

func init() {
	l, _ := NewWithConfig(Config{Output: os.Stdout, Level: INFO})
	defaultLogger.Store(l)
}

// SetDefault replaces the process logger used by the package-level helpers.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

func GetDefault() *Logger {
	return defaultLogger.Load()
}

func Debug(msg string, args ...any) { GetDefault().Debug(msg, args...) }
func Info(msg string, args ...any)  { GetDefault().Info(msg, args...) }
func Warn(msg string, args ...any)  { GetDefault().Warn(msg, args...) }
func Error(msg string, args ...any) { GetDefault().Error(msg, args...) }

func WithField(key string, value any) *Logger {
	return GetDefault().WithField(key, value)
}

func WithFields(fields map[string]any) *Logger {
	return GetDefault().WithFields(fields)
}

func WithError(err error) *Logger {
	return GetDefault().WithError(err)
}

func WithUser(username string) *Logger {
	return GetDefault().WithUser(username)
}
