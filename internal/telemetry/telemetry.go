// Package telemetry wires OpenTelemetry metrics and tracing for the
// engine: counters for points assigned, transitions detected, and pending
// upgrades confirmed, plus a span per per-discipline transaction. Grounded
// on the teacher's own otel.Tracer/otel.Meter-against-the-global-provider
// pattern (internal/storage/dolt/store.go): instruments are registered at
// package init time against the global delegating provider, so they work
// as no-ops until Init wires a real exporter and silently start exporting
// once it has.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the engine's span source, named for the module the way the
// teacher names doltTracer after its own storage package path.
var Tracer = otel.Tracer("github.com/brandond/obra-upgrades/engine")

// Meter is the engine's instrument source.
var Meter = otel.Meter("github.com/brandond/obra-upgrades/engine")

// Metrics holds the engine's OTel instruments. Registered against the
// global provider at package init, so they're usable (as no-ops) before
// Init runs and start exporting for real once it has.
var Metrics struct {
	PointsAssigned         metric.Int64Counter
	TransitionsDetected     metric.Int64Counter
	PendingUpgradesConfirmed metric.Int64Counter
}

func init() {
	Metrics.PointsAssigned, _ = Meter.Int64Counter("obra.points.assigned",
		metric.WithDescription("Points rows created by the Points Assigner"),
		metric.WithUnit("{row}"),
	)
	Metrics.TransitionsDetected, _ = Meter.Int64Counter("obra.category.transitions",
		metric.WithDescription("Category upgrades/downgrades detected by the Category State Machine"),
		metric.WithUnit("{transition}"),
	)
	Metrics.PendingUpgradesConfirmed, _ = Meter.Int64Counter("obra.pending_upgrades.confirmed",
		metric.WithDescription("Pending upgrades confirmed against external membership data"),
		metric.WithUnit("{upgrade}"),
	)
}

// Shutdown releases whatever exporters Init wired up.
type Shutdown func(context.Context) error

// Init wires the global tracer/meter providers. When otlpEndpoint is
// empty, both signals export to stdout (useful for `obrad once` runs on
// an operator's terminal); otherwise traces go to stdout and metrics go
// to the OTLP/HTTP collector at otlpEndpoint, matching a typical
// "metrics to a real backend, traces to the console for now" deployment
// shape.
func Init(ctx context.Context, otlpEndpoint string) (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	var metricReader sdkmetric.Reader
	if otlpEndpoint == "" {
		metricExporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(metricExporter)
	} else {
		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(otlpEndpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter for %s: %w", otlpEndpoint, err)
		}
		metricReader = sdkmetric.NewPeriodicReader(metricExporter)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}

// StartDisciplineSpan starts the per-discipline transaction span spec §5
// implies ("Stages C/D/F/E within a discipline execute within nested
// savepoints"): one span per discipline run, covering every stage.
func StartDisciplineSpan(ctx context.Context, discipline string) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "engine.discipline_run", trace.WithAttributes(
		attribute.String("obra.discipline", discipline),
	))
}
