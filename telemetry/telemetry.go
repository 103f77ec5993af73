// Package telemetry provides OpenTelemetry tracing spans and Prometheus
// counters around step dispatch (§4.5/§4.6), the metrics/tracing surface
// a running flow interpreter exposes for operators: an otel
// TracerProvider built from config.TracingConfig (stdout exporter by
// default, OTLP when configured), plus per-step-dispatch
// prometheus.CounterVec/HistogramVec metrics.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyrdbound/grimoire/config"
)

var (
	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grimoire_steps_total",
			Help: "Total number of steps dispatched, by flow id, step kind, and outcome.",
		},
		[]string{"flow_id", "step_kind", "outcome"},
	)
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grimoire_step_duration_seconds",
			Help:    "Duration of step dispatch, by flow id and step kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flow_id", "step_kind"},
	)
)

func init() {
	prometheus.MustRegister(stepsTotal, stepDuration)
}

// Init sets up the global tracer provider from cfg.Tracing. Supported
// exporters: "stdout" (default), "otlp".
func Init(cfg *config.Config) {
	serviceName := "grimoire"
	if cfg.Tracing != nil && cfg.Tracing.ServiceName != "" {
		serviceName = cfg.Tracing.ServiceName
	}
	res, _ := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)

	var tp *sdktrace.TracerProvider
	switch {
	case cfg.Tracing != nil && cfg.Tracing.Exporter == "otlp":
		opts := []otlptracehttp.Option{}
		if cfg.Tracing.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint))
		}
		exp, err := otlptracehttp.New(context.Background(), opts...)
		if err == nil {
			tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
		}
	default: // stdout fallback
		exp, _ := stdouttrace.New(stdouttrace.WithPrettyPrint())
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
	}
}

var tracer = otel.Tracer("github.com/wyrdbound/grimoire/engine")

// StartStep opens a span for one step dispatch and returns a func that
// closes it, recording outcome ("ok" or "error") into both the span and
// the grimoire_steps_total/grimoire_step_duration_seconds metrics.
func StartStep(ctx context.Context, flowID, stepID, stepKind string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "step."+stepKind,
		trace.WithAttributes(
			attribute.String("grimoire.flow_id", flowID),
			attribute.String("grimoire.step_id", stepID),
			attribute.String("grimoire.step_kind", stepKind),
		),
	)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		}
		stepsTotal.WithLabelValues(flowID, stepKind, outcome).Inc()
		stepDuration.WithLabelValues(flowID, stepKind).Observe(time.Since(start).Seconds())
		span.End()
	}
}
