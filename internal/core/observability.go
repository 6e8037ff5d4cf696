package core

import (
	"context"
	"log/slog"
	"time"

	"diagramcore/pkg/model"
)

// Logger receives structured service logs as message plus key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewSlogLogger adapts a *slog.Logger to the service Logger interface. A nil
// argument adapts slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Clock supplies the service's notion of now, overridable in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface. A nil ClockFunc reads
// the system clock in UTC.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// AuditStatus marks an audit entry as recording a success or a failure.
type AuditStatus string

const (
	// AuditStatusSuccess marks a completed operation.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks a failed operation.
	AuditStatusError AuditStatus = "error"
)

// AuditEntity names the kind of resource an audited operation touched.
type AuditEntity string

const (
	// EntityCell covers single-cell mutations.
	EntityCell AuditEntity = "cell"
	// EntityDocument covers whole-document operations.
	EntityDocument AuditEntity = "document"
	// EntityHistory covers undo and redo traversal.
	EntityHistory AuditEntity = "history"
	// EntityView covers derived-state recomputation.
	EntityView AuditEntity = "view"
)

// AuditAction names what an audited operation did to its entity.
type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionDelete  AuditAction = "delete"
	ActionMove    AuditAction = "move"
	ActionConnect AuditAction = "connect"
	ActionReplace AuditAction = "replace"
	ActionUndo    AuditAction = "undo"
	ActionRedo    AuditAction = "redo"
	ActionRefresh AuditAction = "refresh"
	ActionSave    AuditAction = "save"
	ActionLoad    AuditAction = "load"
)

// AuditEntry describes one completed service operation for compliance
// consumers.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    AuditEntity   `json:"entity"`
	Action    AuditAction   `json:"action"`
	Cell      model.CellID  `json:"cell,omitempty"`
	Status    AuditStatus   `json:"status"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives one entry per audited service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes for aggregation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span opened by a Tracer.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
