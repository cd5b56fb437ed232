// Package logger provides a simple, clean logging interface.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Constants for logging operations.
const (
	callerSkipFrames  = 2 // Skip frames: getCaller -> logging method -> actual caller
	consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Logger defines the logging interface.
type Logger interface {
	// Context-aware variants
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors.
func String(key, val string) Field                { return Field{Key: key, Value: val} }
func Int(key string, val int) Field               { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field           { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field             { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field       { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val interface{}) Field       { return Field{Key: key, Value: val} }
func Error(err error) Field                       { return Field{Key: "error", Value: err} }

// zeroLogger implements Logger on top of zerolog.
type zeroLogger struct {
	name   string
	logger zerolog.Logger
}

func (l *zeroLogger) Named(name string) Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &zeroLogger{name: name, logger: l.logger}
}

func (l *zeroLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(l.logger.Info(), getCaller(), msg, fields)
}

func (l *zeroLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(l.logger.Error(), getCaller(), msg, fields)
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(l.logger.Debug(), getCaller(), msg, fields)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(l.logger.Warn(), getCaller(), msg, fields)
}

func (l *zeroLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.emit(l.logger.Error(), getCaller(), msg, fields)
	os.Exit(1)
}

func (l *zeroLogger) emit(e *zerolog.Event, caller, msg string, fields []Field) {
	if e == nil {
		// level disabled
		return
	}
	if l.name != "" {
		e = e.Str("logger", l.name)
	}
	applyFields(e, fields)
	e.Str("source", caller).Msg(msg)
}

// applyFields converts our Field type to zerolog event fields.
func applyFields(e *zerolog.Event, fields []Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			e.AnErr(f.Key, v)
		case string:
			e.Str(f.Key, v)
		case int:
			e.Int(f.Key, v)
		case int64:
			e.Int64(f.Key, v)
		case bool:
			e.Bool(f.Key, v)
		case float64:
			e.Float64(f.Key, v)
		case time.Duration:
			e.Dur(f.Key, v)
		default:
			e.Interface(f.Key, v)
		}
	}
}

var (
	mu     sync.RWMutex
	global Logger
	level  = zerolog.InfoLevel
	base   zerolog.Logger
)

// Init initializes the global logger with a human-readable console writer on stdout.
func Init() error {
	return InitWithWriter(os.Stdout, "console")
}

// InitWithWriter initializes the global logger writing to w.
// format is "console" (default) or "json".
func InitWithWriter(w io.Writer, format string) error {
	if w == nil {
		return fmt.Errorf("logger writer is nil")
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat, NoColor: true}
	case "json":
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}

	mu.Lock()
	defer mu.Unlock()
	base = zerolog.New(out).Level(level).With().Timestamp().Logger()
	global = &zeroLogger{logger: base}
	return nil
}

// getCaller returns the caller location in format relative/path/file.go:line (IDE-friendly).
func getCaller() string {
	_, file, line, ok := runtime.Caller(callerSkipFrames)
	if !ok {
		return "unknown:0"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	relPath, err := filepath.Rel(cwd, file)
	if err != nil {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	return fmt.Sprintf("%s:%d", relPath, line)
}

// Get returns the global logger.
func Get() Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		// The logger should be explicitly initialized by the application
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() Logger {
	return &zeroLogger{logger: zerolog.Nop()}
}

// Sync flushes buffered log entries.
func Sync() error {
	// zerolog writes synchronously; nothing to flush
	return nil
}

// SetLevel updates the current logging level for the global logger.
func SetLevel(lvl zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	if global != nil {
		base = base.Level(lvl)
		global = &zeroLogger{logger: base}
	}
}

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(lvl string) error {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		SetLevel(zerolog.DebugLevel)
	case "", "info":
		SetLevel(zerolog.InfoLevel)
	case "warn", "warning":
		SetLevel(zerolog.WarnLevel)
	case "error":
		SetLevel(zerolog.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level: %s", lvl)
	}
	return nil
}

// CronLogger adapts a Logger to the cron.Logger interface
// (Info(msg, keysAndValues...) / Error(err, msg, keysAndValues...)).
type CronLogger struct {
	L Logger
}

// Info logs routine scheduler messages at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debug(context.Background(), msg, kvFields(keysAndValues)...)
}

// Error logs scheduler errors.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Error(context.Background(), msg, append(kvFields(keysAndValues), Error(err))...)
}

func kvFields(kv []interface{}) []Field {
	fields := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
