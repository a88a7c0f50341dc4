// Package telemetry provides OpenTelemetry trace export for finbotd.
//
// When enabled it installs a global TracerProvider exporting OTLP spans to a
// collector; when disabled the package is inert and all spans go through the
// no-op global provider. Telemetry failures never crash the daemon; the
// instance degrades to no-op and the reason is kept for logging.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/fyrsmithlabs/finbotd/internal/config"
)

// serviceName identifies finbotd spans at the collector.
const serviceName = "finbotd"

// Telemetry owns the tracer provider lifecycle.
type Telemetry struct {
	cfg            config.TelemetryConfig
	tracerProvider *sdktrace.TracerProvider
	degradedReason string
}

// New initializes trace export per cfg and installs the global provider.
// A disabled or failed setup returns a usable no-op instance, never an error
// the caller has to treat as fatal.
func New(ctx context.Context, cfg config.TelemetryConfig, version string) *Telemetry {
	t := &Telemetry{cfg: cfg}
	if !cfg.Enabled {
		return t
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		t.degradedReason = fmt.Sprintf("exporter setup failed: %v", err)
		return t
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		t.degradedReason = fmt.Sprintf("resource setup failed: %v", err)
		return t
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}
}

// Active reports whether spans are being exported.
func (t *Telemetry) Active() bool {
	return t != nil && t.tracerProvider != nil
}

// DegradedReason returns why setup fell back to no-op, or "".
func (t *Telemetry) DegradedReason() string {
	if t == nil {
		return ""
	}
	return t.degradedReason
}

// Shutdown flushes pending spans. Safe on a no-op instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Active() {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownWait)
		defer cancel()
	}
	if err := t.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace provider shutdown: %w", err)
	}
	return nil
}
