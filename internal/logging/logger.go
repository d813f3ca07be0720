// Package logging provides structured logging for the per-user actor fleet,
// with trace-id and user-id context propagation so a single request can be
// followed across dispatch, store, and queue-send log lines.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tminus/internal/redaction"
)

// ContextKey is the type for context keys carried on request contexts.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	UserIDKey  ContextKey = "user_id"
	ServiceKey ContextKey = "service"
)

// Logger wraps logrus.Logger with actor-fleet context helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a new Logger instance for the named service ("tminus-actor",
// "tminus-deletion-worker", ...).
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables, defaulting to "info" and "json".
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying the service name plus any trace/user
// id found on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := ctx.Value(UserIDKey); userID != nil {
		entry = entry.WithField("user_id", userID)
	}
	return entry
}

// NewTraceID generates a new request trace id.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithUserID attaches the actor's user id to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the actor's user id from ctx, if present.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// LogOperation logs the completion of one actor-dispatched operation.
func (l *Logger) LogOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("actor operation failed")
		return
	}
	entry.Info("actor operation completed")
}

// LogJournalWrite logs an append to the canonical event journal.
func (l *Logger) LogJournalWrite(ctx context.Context, canonicalEventID, changeType, reason string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"canonical_event_id": canonicalEventID,
		"change_type":        changeType,
		"reason":             redaction.Scrub(reason),
	}).Info("journal entry written")
}

// LogConflict logs a detected authority conflict.
func (l *Logger) LogConflict(ctx context.Context, canonicalEventID string, fieldCount int) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"canonical_event_id": canonicalEventID,
		"conflicting_fields": fieldCount,
	}).Warn("authority conflict resolved provider-wins")
}

// LogDeletionStep logs one step of the cascading deletion workflow.
func (l *Logger) LogDeletionStep(ctx context.Context, requestID string, step int, deleted int, ok bool) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": requestID,
		"step":       step,
		"deleted":    deleted,
		"ok":         ok,
	}).Info("deletion workflow step")
}

var defaultLogger *Logger

// InitDefault initializes the package-level default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the default logger, lazily creating a fallback one.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("tminus", "info", "json")
	}
	return defaultLogger
}
