// Package logging provides structured logging for ctverify.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	default:
		return 3
	}
}

// ParseLevel maps a config or flag value to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Format selects how entries are rendered.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText, "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown log format %q", s)
}

// Logger provides structured logging.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	format Format
	output io.Writer
	fields map[string]any
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// NewLogger creates a JSON logger writing to stderr with the specified level.
func NewLogger(level Level) *Logger {
	return &Logger{
		mu:     &sync.Mutex{},
		level:  level,
		format: FormatJSON,
		output: os.Stderr,
		fields: make(map[string]any),
	}
}

// WithFields returns a new logger with additional fields. The new logger
// shares the output and its lock with l.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		mu:     l.mu,
		level:  l.level,
		format: l.format,
		output: l.output,
		fields: newFields,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.log(LevelError, msg, fields...)
}

// ErrorErr logs an error message with an error value.
func (l *Logger) ErrorErr(msg string, err error, fields ...map[string]any) {
	l.log(LevelError, msg, append([]map[string]any{{"error": errText(err)}}, fields...)...)
}

// WarnErr logs a warning with an error value.
func (l *Logger) WarnErr(msg string, err error, fields ...map[string]any) {
	l.log(LevelWarn, msg, append([]map[string]any{{"error": errText(err)}}, fields...)...)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (l *Logger) log(level Level, msg string, fields ...map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level.rank() < l.level.rank() {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]any),
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, f := range fields {
		for k, v := range f {
			entry.Fields[k] = v
		}
	}
	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}

	if l.format == FormatText {
		io.WriteString(l.output, renderText(entry))
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, `{"level":"error","message":"failed to marshal log entry"}`+"\n")
		return
	}
	l.output.Write(append(data, '\n'))
}

func renderText(entry LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(string(entry.Level)))
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	b.WriteByte('\n')
	return b.String()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetFormat sets the output format.
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
}

// Global logger instance
var (
	globalMu sync.RWMutex
	global   = NewLogger(LevelInfo)
)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the global logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Debug logs to the global logger.
func Debug(msg string, fields ...map[string]any) {
	Global().Debug(msg, fields...)
}

// Info logs to the global logger.
func Info(msg string, fields ...map[string]any) {
	Global().Info(msg, fields...)
}

// Warn logs to the global logger.
func Warn(msg string, fields ...map[string]any) {
	Global().Warn(msg, fields...)
}

// Error logs to the global logger.
func Error(msg string, fields ...map[string]any) {
	Global().Error(msg, fields...)
}

// ErrorErr logs to the global logger with an error.
func ErrorErr(msg string, err error, fields ...map[string]any) {
	Global().ErrorErr(msg, err, fields...)
}

// WithFields returns a new logger from global with additional fields.
func WithFields(fields map[string]any) *Logger {
	return Global().WithFields(fields)
}
