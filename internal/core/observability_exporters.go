package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"custodyledger/pkg/domain"
)

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder publishes per-operation counters in one expvar map,
// served by /debug/vars. Keys are "<operation>.success", "<operation>.error"
// and "<operation>.ms" (total latency in milliseconds).
type ExpvarMetricsRecorder struct {
	name string
	vars *expvar.Map
}

// NewExpvarMetricsRecorder publishes a recorder under name. An existing map
// published under the same name is reused; an empty name gets a unique one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("custodyledger_operations_%d", expvarSeq.Add(1))
	}
	if existing, ok := expvar.Get(name).(*expvar.Map); ok {
		return &ExpvarMetricsRecorder{name: name, vars: existing}
	}
	vars := new(expvar.Map).Init()
	expvar.Publish(name, vars)
	return &ExpvarMetricsRecorder{name: name, vars: vars}
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Count returns how many times operation ended with the given outcome.
func (r *ExpvarMetricsRecorder) Count(operation string, success bool) int64 {
	v, ok := r.vars.Get(operation + "." + outcome(success)).(*expvar.Int)
	if !ok {
		return 0
	}
	return v.Value()
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.Add(operation+"."+outcome(success), 1)
	r.vars.AddFloat(operation+".ms", float64(duration)/float64(time.Millisecond))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// TraceRecord is one finished ledger operation in the JSON trace log.
type TraceRecord struct {
	Operation  string      `json:"operation"`
	Status     string      `json:"status"`
	Code       domain.Code `json:"code,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS float64     `json:"duration_ms"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at"`
}

// JSONTracer writes one TraceRecord per operation as a JSON line.
type JSONTracer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	clock Clock
}

// NewJSONTracer writes spans to w, timed by clock (wall clock when nil).
func NewJSONTracer(w io.Writer, clock Clock) *JSONTracer {
	if clock == nil {
		clock = ClockFunc(func() time.Time { return time.Now().UTC() })
	}
	return &JSONTracer{enc: json.NewEncoder(w), clock: clock}
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: t.clock.Now()}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
}

func (s *jsonSpan) End(err error) {
	ended := s.tracer.clock.Now()
	rec := TraceRecord{
		Operation:  s.operation,
		Status:     outcome(err == nil),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		rec.Code = domain.CodeOf(err)
		rec.Error = err.Error()
	}
	s.tracer.mu.Lock()
	_ = s.tracer.enc.Encode(rec)
	s.tracer.mu.Unlock()
}

// MultiTracer starts a span on every tracer, threading the context through.
type MultiTracer []Tracer

// Start implements Tracer.
func (m MultiTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	spans := make(multiSpan, 0, len(m))
	for _, t := range m {
		if t == nil {
			continue
		}
		var span TraceSpan
		ctx, span = t.Start(ctx, operation)
		spans = append(spans, span)
	}
	return ctx, spans
}

type multiSpan []TraceSpan

func (m multiSpan) End(err error) {
	for i := len(m) - 1; i >= 0; i-- {
		m[i].End(err)
	}
}

// LogAuditRecorder writes every audit entry as an info line.
type LogAuditRecorder struct {
	logger Logger
}

// NewLogAuditRecorder returns a recorder logging to logger.
func NewLogAuditRecorder(logger Logger) *LogAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogAuditRecorder{logger: logger}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation, "entity", string(entry.Entity), "id", entry.EntityID,
		"actor", entry.Actor.Hex(), "status", string(entry.Status), "duration", entry.Duration,
	}
	if entry.Status == AuditStatusError {
		args = append(args, "code", string(entry.Code))
	}
	r.logger.Info("ledger audit", args...)
}
