package core

import (
	"time"

	"diagramcore/internal/persistence"
	"diagramcore/internal/view"
)

// DefaultHistoryLimit bounds the undo history when no override is supplied.
const DefaultHistoryLimit = 100

// DefaultDocumentID names the document a service persists to when no
// override is supplied.
const DefaultDocumentID = "default"

type serviceOptions struct {
	clock        Clock
	logger       Logger
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	historyLimit int
	store        persistence.DocumentStore
	documentID   string
	autosave     bool
	viewOptions  []view.Option
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:        ClockFunc(time.Now),
		logger:       noopLogger{},
		audit:        noopAuditRecorder{},
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		historyLimit: DefaultHistoryLimit,
		documentID:   DefaultDocumentID,
	}
}

// Option customizes service construction.
type Option func(*serviceOptions)

// WithLogger wires a structured logger into the service. Nil loggers are
// ignored.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the service's time source. Nil clocks are ignored.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder wires an audit sink into the service. Nil recorders are
// ignored.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder wires a metrics sink into the service. Nil recorders
// are ignored.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer wires a tracer into the service. Nil tracers are ignored.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithHistoryLimit bounds the undo history. Non-positive limits are ignored.
func WithHistoryLimit(limit int) Option {
	return func(o *serviceOptions) {
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

// WithDocumentStore attaches a persistence backend and the document id the
// service saves under. An empty id keeps the default.
func WithDocumentStore(store persistence.DocumentStore, documentID string) Option {
	return func(o *serviceOptions) {
		o.store = store
		if documentID != "" {
			o.documentID = documentID
		}
	}
}

// WithAutosave persists the document after every successful mutating
// operation. It requires a document store to take effect.
func WithAutosave() Option {
	return func(o *serviceOptions) {
		o.autosave = true
	}
}

// WithViewOptions forwards options to the service's view cache.
func WithViewOptions(opts ...view.Option) Option {
	return func(o *serviceOptions) {
		o.viewOptions = append(o.viewOptions, opts...)
	}
}
