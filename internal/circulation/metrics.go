// internal/circulation/metrics.go
package circulation

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	loansOpened    metric.Int64Counter
	loansClosed    metric.Int64Counter
	borrowRejected metric.Int64Counter
	finesCharged   metric.Float64Counter
}

// newMetrics creates the service instruments. An instrument that cannot be
// created is reported to the global otel error handler and replaced by a no-op.
func newMetrics(mp metric.MeterProvider) *metrics {
	meter := mp.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	m := &metrics{}
	var err error

	if m.loansOpened, err = meter.Int64Counter("loans.opened",
		metric.WithDescription("Loans opened by successful borrows"),
		metric.WithUnit("{loan}"),
	); err != nil {
		otel.Handle(err)
		m.loansOpened, _ = fallback.Int64Counter("loans.opened")
	}

	if m.loansClosed, err = meter.Int64Counter("loans.closed",
		metric.WithDescription("Loans closed by returns"),
		metric.WithUnit("{loan}"),
	); err != nil {
		otel.Handle(err)
		m.loansClosed, _ = fallback.Int64Counter("loans.closed")
	}

	if m.borrowRejected, err = meter.Int64Counter("borrow.rejected",
		metric.WithDescription("Borrow requests rejected, by reason"),
		metric.WithUnit("{request}"),
	); err != nil {
		otel.Handle(err)
		m.borrowRejected, _ = fallback.Int64Counter("borrow.rejected")
	}

	if m.finesCharged, err = meter.Float64Counter("fines.charged",
		metric.WithDescription("Overdue and assessed fines charged to patrons"),
	); err != nil {
		otel.Handle(err)
		m.finesCharged, _ = fallback.Float64Counter("fines.charged")
	}

	return m
}
