package telemetry

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.uber.org/zap"

	"shelf-taught/internal/core/config"
)

// Init 未启用时返回空的 shutdown
func Init(ctx context.Context, l *zap.Logger, app config.App, c config.Telemetry) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !c.Enabled {
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(app.Name),
		attribute.String("deployment.environment", app.Env),
	))
	if err != nil {
		l.Warn("otel resource init failed (continuing)", zap.Error(err))
	}

	exp, err := newExporter(ctx, c)
	if err != nil {
		l.Warn("otel exporter init failed, tracing disabled", zap.Error(err))
		return noop
	}

	ratio := c.SampleRatio
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	l.Info("otel tracing initialized", zap.String("endpoint", c.Endpoint), zap.Float64("ratio", ratio))
	return tp.Shutdown
}

func newExporter(ctx context.Context, c config.Telemetry) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}
