// Package logging provides leveled key/value logging on top of the standard
// log package.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if n, ok := levelNames[l]; ok {
		return n
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// shared holds the level and output common to a logger and everything
// derived from it with With, so SetLevel on the root applies everywhere.
type shared struct {
	mu       sync.RWMutex
	minLevel Level
	output   *log.Logger
}

// Logger writes leveled messages with context fields.
type Logger struct {
	s      *shared
	fields []field
}

type field struct {
	key string
	val any
}

var defaultLogger = New(os.Stderr, LevelInfo)

// New creates a Logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{s: &shared{minLevel: level, output: log.New(w, "", log.LstdFlags)}}
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the minimum level for l and all loggers derived from it.
func (l *Logger) SetLevel(level Level) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.minLevel = level
}

// SetOutput redirects l and all loggers derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.output = log.New(w, "", log.LstdFlags)
}

// With returns a Logger that adds key=value to every message.
func (l *Logger) With(key string, value any) *Logger {
	fields := make([]field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	return &Logger{s: l.s, fields: append(fields, field{key, value})}
}

func (l *Logger) log(level Level, msg string, keyVals ...any) {
	l.s.mu.RLock()
	minLevel, output := l.s.minLevel, l.s.output
	l.s.mu.RUnlock()
	if level < minLevel {
		return
	}

	var sb strings.Builder
	sb.WriteString(levelNames[level])
	sb.WriteString(": ")
	sb.WriteString(msg)

	kv := make([]field, 0, len(l.fields)+len(keyVals)/2)
	kv = append(kv, l.fields...)
	var inline []field
	for i := 0; i+1 < len(keyVals); i += 2 {
		if key, ok := keyVals[i].(string); ok {
			inline = append(inline, field{key, keyVals[i+1]})
		}
	}
	sort.SliceStable(inline, func(i, j int) bool { return inline[i].key < inline[j].key })
	kv = append(kv, inline...)

	if len(kv) > 0 {
		sb.WriteString(" |")
		for _, f := range kv {
			sb.WriteString(" ")
			sb.WriteString(f.key)
			sb.WriteString("=")
			sb.WriteString(formatValue(f.val))
		}
	}
	output.Print(sb.String())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		return fmt.Sprintf("%q", val.Error())
	case fmt.Stringer:
		return formatValue(val.String())
	default:
		return fmt.Sprint(v)
	}
}

func (l *Logger) Debug(msg string, keyVals ...any) { l.log(LevelDebug, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...any)  { l.log(LevelInfo, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...any)  { l.log(LevelWarn, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...any) { l.log(LevelError, msg, keyVals...) }

// SetLevel sets the minimum level of the default logger.
func SetLevel(level Level) { defaultLogger.SetLevel(level) }

// With returns the default logger with an extra field.
func With(key string, value any) *Logger { return defaultLogger.With(key, value) }

func Debug(msg string, keyVals ...any) { defaultLogger.Debug(msg, keyVals...) }
func Info(msg string, keyVals ...any)  { defaultLogger.Info(msg, keyVals...) }
func Warn(msg string, keyVals ...any)  { defaultLogger.Warn(msg, keyVals...) }
func Error(msg string, keyVals ...any) { defaultLogger.Error(msg, keyVals...) }
