// Package logger provides structured logging for the Sentra security engine.
// It defines a small logging interface with typed field helpers; the
// production implementation lives in internal/infrastructure/monitoring and
// is backed by zap. Log entries pick up OpenTelemetry trace identifiers from
// the context when a span is active.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger defines the interface for structured logging.
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, message string, fields ...Field)

	// Info logs an informational message
	Info(ctx context.Context, message string, fields ...Field)

	// Warn logs a warning message
	Warn(ctx context.Context, message string, fields ...Field)

	// Error logs an error message
	Error(ctx context.Context, message string, err error, fields ...Field)

	// WithComponent creates a new logger scoped to a component
	WithComponent(component string) Logger
}

// ================================================================================
// Field Helpers
// ================================================================================

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Float64 creates a float64 field.
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

// Bool creates a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a duration field rendered as a string.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates an RFC3339 time field.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339)}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// ================================================================================
// Default JSON Logger
// ================================================================================

// jsonLogger is a dependency-free Logger used in tests and as a fallback
// before the zap logger is wired.
type jsonLogger struct {
	mu        sync.Mutex
	level     constants.LogLevel
	output    io.Writer
	component string
}

// logEntry is the serialized form of a log line.
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
}

// NewDefaultLogger creates a JSON logger writing to stdout at Info level.
func NewDefaultLogger() Logger {
	return NewJSONLogger(constants.LogLevelInfo, os.Stdout)
}

// NewJSONLogger creates a JSON logger at the given level.
func NewJSONLogger(level constants.LogLevel, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}
	return &jsonLogger{level: level, output: output}
}

var levelRank = map[constants.LogLevel]int{
	constants.LogLevelDebug: 0,
	constants.LogLevelInfo:  1,
	constants.LogLevelWarn:  2,
	constants.LogLevelError: 3,
	constants.LogLevelFatal: 4,
}

func (l *jsonLogger) enabled(level constants.LogLevel) bool {
	return levelRank[level] >= levelRank[l.level]
}

func (l *jsonLogger) Debug(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelDebug, message, fields...)
}

func (l *jsonLogger) Info(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelInfo, message, fields...)
}

func (l *jsonLogger) Warn(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, constants.LogLevelWarn, message, fields...)
}

func (l *jsonLogger) Error(ctx context.Context, message string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, String("error", err.Error()))
	}
	l.log(ctx, constants.LogLevelError, message, fields...)
}

func (l *jsonLogger) WithComponent(component string) Logger {
	return &jsonLogger{level: l.level, output: l.output, component: component}
}

func (l *jsonLogger) log(ctx context.Context, level constants.LogLevel, message string, fields ...Field) {
	if !l.enabled(level) {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     string(level),
		Component: l.component,
		Message:   message,
	}

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			entry.TraceID = span.SpanContext().TraceID().String()
			entry.SpanID = span.SpanContext().SpanID().String()
		}
		if requestID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok {
			fields = append(fields, String("request_id", requestID))
		}
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(append(data, '\n'))
}
