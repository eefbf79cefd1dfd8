// internal/circulation/options.go
package circulation

import (
	"log/slog"
	"time"

	"librarydesk/internal/journal"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Option configures the service.
type Option func(*service)

// WithClock sets the time source used to stamp new loans.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// WithJournal records events into j instead of a private journal.
func WithJournal(j *journal.Journal) Option {
	return func(s *service) { s.journal = j }
}

// WithTracerProvider sets the provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for service metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meterProvider = mp }
}

// WithRegistrationLimiter throttles book and patron registrations.
func WithRegistrationLimiter(l *rate.Limiter) Option {
	return func(s *service) { s.limiter = l }
}
