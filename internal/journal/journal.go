// Package journal is an in-memory, append-only record of domain events with
// per-aggregate optimistic concurrency control.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is a recorded domain event with its metadata.
type Event struct {
	ID            uuid.UUID           `json:"id"`
	Sequence      int64               `json:"sequence"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	EventType     string              `json:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data"`
	Version       int                 `json:"version"`
	RecordedAt    time.Time           `json:"recorded_at"`
}

// NewEvent encodes payload into an event of the given type. Sequence,
// version and timestamps are assigned on Append.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: data}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.EventData, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", e.EventType, err)
	}
	return nil
}

// Journal stores events in append order.
type Journal struct {
	mu       sync.Mutex
	events   []Event
	versions map[string]int
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithTracerProvider sets the provider used for journal spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(j *Journal) {
		j.tracer = tp.Tracer("librarydesk/journal")
	}
}

// WithClock sets the source of RecordedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// New creates an empty journal.
func New(opts ...Option) *Journal {
	j := &Journal{
		versions: make(map[string]int),
		tracer:   otel.Tracer("librarydesk/journal"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func streamKey(aggregateType, aggregateID string) string {
	return aggregateType + "/" + aggregateID
}

// Append atomically appends events to an aggregate stream. It fails with
// ErrConcurrencyConflict unless the stream is at expectedVersion.
func (j *Journal) Append(ctx context.Context, aggregateType, aggregateID string, expectedVersion int, events ...Event) error {
	_, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		span.RecordError(ErrInvalidVersion)
		return ErrInvalidVersion
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := streamKey(aggregateType, aggregateID)
	currentVersion := j.versions[key]
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	recordedAt := j.now().UTC()
	for i, event := range events {
		event.ID = uuid.New()
		event.Sequence = int64(len(j.events) + 1)
		event.AggregateType = aggregateType
		event.AggregateID = aggregateID
		event.Version = expectedVersion + i + 1
		event.RecordedAt = recordedAt
		j.events = append(j.events, event)

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.sequence", event.Sequence),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}
	j.versions[key] = expectedVersion + len(events)

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Load returns the events of one aggregate with version in
// [fromVersion, toVersion]. A toVersion of zero means no upper bound.
func (j *Journal) Load(ctx context.Context, aggregateType, aggregateID string, fromVersion, toVersion int) []Event {
	_, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	j.mu.Lock()
	defer j.mu.Unlock()

	var events []Event
	for _, e := range j.events {
		if e.AggregateType != aggregateType || e.AggregateID != aggregateID {
			continue
		}
		if e.Version < fromVersion || (toVersion > 0 && e.Version > toVersion) {
			continue
		}
		events = append(events, e)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events
}

// CurrentVersion returns the latest version of an aggregate, zero if it has no events.
func (j *Journal) CurrentVersion(aggregateType, aggregateID string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.versions[streamKey(aggregateType, aggregateID)]
}

// Stream returns up to batchSize events with a sequence greater than
// fromSequence, in append order. A non-positive batchSize returns all of them.
func (j *Journal) Stream(ctx context.Context, fromSequence int64, batchSize int) []Event {
	_, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	j.mu.Lock()
	defer j.mu.Unlock()

	start := int(fromSequence)
	if start < 0 {
		start = 0
	}
	if start > len(j.events) {
		start = len(j.events)
	}
	end := len(j.events)
	if batchSize > 0 && start+batchSize < end {
		end = start + batchSize
	}

	events := make([]Event, end-start)
	copy(events, j.events[start:end])

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events
}

// Len returns the number of recorded events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}
