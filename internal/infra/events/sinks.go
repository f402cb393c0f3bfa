// Package events provides domain.EventSink implementations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"custodyledger/pkg/domain"
)

var (
	_ domain.EventSink = (*Recorder)(nil)
	_ domain.EventSink = (*JSONLines)(nil)
	_ domain.EventSink = (*LogSink)(nil)
	_ domain.EventSink = Fanout(nil)
	_ domain.EventSink = Discard{}
)

// Recorder retains published events in memory for inspection.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Publish implements domain.EventSink.
func (r *Recorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds in publish order.
func (r *Recorder) Kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

// JSONLines serializes events to a writer, one JSON document per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines constructs a sink writing to w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Publish implements domain.EventSink.
func (j *JSONLines) Publish(_ context.Context, event domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(event)
}

// InfoLogger is the subset of *slog.Logger used by LogSink.
type InfoLogger interface {
	Info(msg string, args ...any)
}

// LogSink writes a one-line summary of each event to a logger.
type LogSink struct {
	logger InfoLogger
}

// NewLogSink wraps logger; a nil logger uses slog.Default().
func NewLogSink(logger InfoLogger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish implements domain.EventSink.
func (l *LogSink) Publish(_ context.Context, event domain.Event) error {
	switch event.Kind {
	case domain.EventRegistered, domain.EventUnregistered:
		l.logger.Info("ledger event", "kind", string(event.Kind), "identity", event.Identity.Hex(), "actor", event.Actor.Hex())
	default:
		l.logger.Info("ledger event", "kind", string(event.Kind), "item", event.ItemCode.String(), "actor", event.Actor.Hex(), "price", event.Price)
	}
	return nil
}

// Fanout publishes to every sink and joins their errors.
type Fanout []domain.EventSink

// Publish implements domain.EventSink.
func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

// Publish implements domain.EventSink.
func (Discard) Publish(context.Context, domain.Event) error { return nil }
