package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)

	snapshot := recorder.Snapshot()
	stats := snapshot.Operations["test_op"]
	if stats.Success != 1 || stats.Error != 1 {
		t.Fatalf("unexpected result counts: %+v", stats)
	}
	if stats.DurationMS <= 0 {
		t.Fatalf("expected positive duration, got %v", stats.DurationMS)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestExpvarMetricsRecorderIgnoresEmptyOperation(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	recorder.Observe(context.Background(), "", true, time.Millisecond)
	if got := len(recorder.Snapshot().Operations); got != 0 {
		t.Fatalf("expected no operations recorded, got %d", got)
	}
}

func TestExpvarMetricsRecorderKeepsSuppliedName(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("diagram_test_export_name")
	if recorder.Name() != "diagram_test_export_name" {
		t.Fatalf("unexpected name %q", recorder.Name())
	}
	if expvar.Get("diagram_test_export_name") == nil {
		t.Fatalf("expected export under supplied name")
	}
}

func TestPrometheusMetricsRecorderCollects(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	recorder.Observe(context.Background(), "insert_vertex", true, 25*time.Millisecond)
	recorder.Observe(context.Background(), "insert_vertex", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var results, durations bool
	for _, family := range families {
		switch family.GetName() {
		case "diagramcore_service_operation_results_total":
			results = true
			counts := map[string]float64{}
			for _, metric := range family.GetMetric() {
				var op, status string
				for _, label := range metric.GetLabel() {
					switch label.GetName() {
					case "operation":
						op = label.GetValue()
					case "status":
						status = label.GetValue()
					}
				}
				if op == "insert_vertex" {
					counts[status] = metric.GetCounter().GetValue()
				}
			}
			if counts["success"] != 1 || counts["error"] != 1 {
				t.Fatalf("unexpected counter values: %v", counts)
			}
		case "diagramcore_service_operation_duration_seconds":
			durations = true
			for _, metric := range family.GetMetric() {
				if got := metric.GetHistogram().GetSampleCount(); got != 2 {
					t.Fatalf("expected 2 samples, got %d", got)
				}
			}
		}
	}
	if !results || !durations {
		t.Fatalf("expected both collectors gathered, results=%v durations=%v", results, durations)
	}
}

func TestPrometheusMetricsRecorderRegisterConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single span entry, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != entryStatusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}

func TestJSONTraceTracerRecordsErrors(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "failing_op")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected single span entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Status != entryStatusError {
		t.Fatalf("expected error status, got %s", entry.Status)
	}
	if entry.Error != "boom" {
		t.Fatalf("expected error message, got %q", entry.Error)
	}
	if entry.EndedAt.Before(entry.StartedAt) {
		t.Fatalf("expected span end after start: %+v", entry)
	}
}
