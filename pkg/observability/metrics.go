package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the instruments of the IAM core. A nil *Metrics is valid
// and records nothing, so callers wire it unconditionally.
type Metrics struct {
	commandDuration metric.Float64Histogram
	commandErrors   metric.Int64Counter

	eventsPushed metric.Int64Counter
	pushDuration metric.Float64Histogram

	projectionEvents   metric.Int64Counter
	projectionDuration metric.Float64Histogram
	projectionErrors   metric.Int64Counter

	relayPublished metric.Int64Counter
}

// NewMetrics registers the instruments on the meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.commandDuration, err = meter.Float64Histogram(
		"iam.command.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.commandErrors, err = meter.Int64Counter(
		"iam.command.errors",
		metric.WithDescription("Commands that returned an error"),
	); err != nil {
		return nil, err
	}
	if m.eventsPushed, err = meter.Int64Counter(
		"iam.eventstore.events.pushed",
		metric.WithDescription("Events committed to the log"),
	); err != nil {
		return nil, err
	}
	if m.pushDuration, err = meter.Float64Histogram(
		"iam.eventstore.push.duration",
		metric.WithDescription("Event log push duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.projectionEvents, err = meter.Int64Counter(
		"iam.projection.events.applied",
		metric.WithDescription("Events applied to read models"),
	); err != nil {
		return nil, err
	}
	if m.projectionDuration, err = meter.Float64Histogram(
		"iam.projection.batch.duration",
		metric.WithDescription("Projection batch duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.projectionErrors, err = meter.Int64Counter(
		"iam.projection.errors",
		metric.WithDescription("Projection catch-up failures"),
	); err != nil {
		return nil, err
	}
	if m.relayPublished, err = meter.Int64Counter(
		"iam.relay.events.published",
		metric.WithDescription("Events relayed to NATS"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCommand records one command handling, errored or not.
func (m *Metrics) RecordCommand(ctx context.Context, command string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("command", command))
	m.commandDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.commandErrors.Add(ctx, 1, attrs)
	}
}

// RecordPush records one event log commit of count events.
func (m *Metrics) RecordPush(ctx context.Context, count int, duration time.Duration) {
	if m == nil {
		return
	}
	m.eventsPushed.Add(ctx, int64(count))
	m.pushDuration.Record(ctx, duration.Seconds())
}

// RecordProjectionBatch records one applied projection batch.
func (m *Metrics) RecordProjectionBatch(ctx context.Context, projection string, count int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("projection", projection))
	m.projectionEvents.Add(ctx, int64(count), attrs)
	m.projectionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProjectionError records a failed catch-up attempt.
func (m *Metrics) RecordProjectionError(ctx context.Context, projection string) {
	if m == nil {
		return
	}
	m.projectionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("projection", projection)))
}

// RecordRelayPublish records one event published to NATS.
func (m *Metrics) RecordRelayPublish(ctx context.Context, aggregateType string) {
	if m == nil {
		return
	}
	m.relayPublished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("aggregate_type", aggregateType)))
}
