// Package observability initializes OpenTelemetry export, defines the
// pipeline's instruments, and formats pipeline output for the verbose CLI mode.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope for the service's tracer and meter.
const ScopeName = "github.com/jonathan/career-coach"

// Shutdown flushes and stops the providers installed by Init.
type Shutdown func(ctx context.Context) error

// Init configures the global tracer and meter providers to export over OTLP
// HTTP. An empty endpoint leaves the no-op providers in place.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}, nil
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// Metrics holds the pipeline's instruments. A nil *Metrics records nothing.
type Metrics struct {
	toolRuns           metric.Int64Counter
	aiCallDuration     metric.Float64Histogram
	settlementFailures metric.Int64Counter
	referralCredits    metric.Int64Counter
}

// NewMetrics creates the instruments on meter. Pass nil to use the global
// meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(ScopeName)
	}

	var (
		m   Metrics
		err error
	)
	if m.toolRuns, err = meter.Int64Counter("tool_runs_total",
		metric.WithDescription("Tool runs by terminal outcome")); err != nil {
		return nil, fmt.Errorf("telemetry: tool_runs_total: %w", err)
	}
	if m.aiCallDuration, err = meter.Float64Histogram("ai_call_duration_ms",
		metric.WithDescription("Model provider call latency"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("telemetry: ai_call_duration_ms: %w", err)
	}
	if m.settlementFailures, err = meter.Int64Counter("settlement_failures_total",
		metric.WithDescription("Persisted results whose token settlement failed")); err != nil {
		return nil, fmt.Errorf("telemetry: settlement_failures_total: %w", err)
	}
	if m.referralCredits, err = meter.Int64Counter("referral_credits_total",
		metric.WithDescription("Referral rewards credited")); err != nil {
		return nil, fmt.Errorf("telemetry: referral_credits_total: %w", err)
	}
	return &m, nil
}

// ToolRun counts one finished run. outcome is "complete" or an error code.
func (m *Metrics) ToolRun(ctx context.Context, tool, outcome string) {
	if m == nil {
		return
	}
	m.toolRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	))
}

// AICall records the latency of one provider attempt.
func (m *Metrics) AICall(ctx context.Context, tool, model, attempt string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiCallDuration.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("model", model),
		attribute.String("attempt", attempt),
	))
}

// SettlementFailure counts a result that was stored but not charged.
func (m *Metrics) SettlementFailure(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.settlementFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// ReferralCredit counts a credited referral.
func (m *Metrics) ReferralCredit(ctx context.Context) {
	if m == nil {
		return
	}
	m.referralCredits.Add(ctx, 1)
}
