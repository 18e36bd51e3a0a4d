package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// metrics carries the booking funnel counters. Instrument creation never
// fails with the global provider, but every increment stays nil-safe so
// tests can run without a meter.
type metrics struct {
	bookingsCreated   metric.Int64Counter
	lockAttempts      metric.Int64Counter
	lockConflicts     metric.Int64Counter
	bookingsCompleted metric.Int64Counter
	paymentsDeclined  metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter("cinema-booking-engine")

	m := &metrics{}

	m.bookingsCreated, _ = meter.Int64Counter("bookings.created")
	m.lockAttempts, _ = meter.Int64Counter("seat_locks.attempts")
	m.lockConflicts, _ = meter.Int64Counter("seat_locks.conflicts")
	m.bookingsCompleted, _ = meter.Int64Counter("bookings.completed")
	m.paymentsDeclined, _ = meter.Int64Counter("payments.declined")

	return m
}

func (m *metrics) add(ctx context.Context, counter metric.Int64Counter) {
	if m == nil || counter == nil {
		return
	}

	counter.Add(ctx, 1)
}
