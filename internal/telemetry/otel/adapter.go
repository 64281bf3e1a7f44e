package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"task-tracker/backend/internal/telemetry"
	"task-tracker/backend/internal/telemetry/domain"
)

const instrumentationName = "task-tracker/auth"

// recordEmitter is the slice of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via provider and
// counts them on the auth.events counter of meters. Either may be nil; with both nil it is a no-op.
func NewEventEmitter(provider *sdklog.LoggerProvider, meters metric.MeterProvider) telemetry.EventEmitter {
	if provider == nil && meters == nil {
		return noopEmitter{}
	}
	e := &otelEmitter{}
	if provider != nil {
		e.logger = provider.Logger(instrumentationName)
	}
	if meters != nil {
		// Instrument creation only fails on an invalid name.
		e.counter, _ = meters.Meter(instrumentationName).Int64Counter(
			"auth.events",
			metric.WithDescription("Auth events by type and outcome"),
		)
	}
	return e
}

// NewEventEmitterWithLogger returns an emitter writing to logger only. Used by tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger  recordEmitter
	counter metric.Int64Counter
}

// Emit converts the event to an OTel log record and bumps the counter.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	if e.counter != nil {
		e.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event_type", event.Type),
			attribute.String("outcome", event.Outcome),
		))
	}
	if e.logger == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if event.Outcome == domain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	for _, kv := range []struct{ k, v string }{
		{"event_type", event.Type},
		{"username", event.Username},
		{"outcome", event.Outcome},
		{"reason", event.Reason},
		{"source", event.Source},
		{"client_ip", event.ClientIP},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
