package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// TracingConfig controls span export for provider calls and score writes.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	SampleRatio float64
	Writer      io.Writer
}

// InitTracing installs a global tracer provider exporting spans as JSON
// lines. When tracing is disabled the returned shutdown is a no-op and the
// otel default no-op provider stays in place.
func InitTracing(ctx context.Context, cfg TracingConfig, logger zerolog.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		logger.Warn().Err(err).Msg("tracing resource incomplete")
	}

	ratio := cfg.SampleRatio
	switch {
	case ratio <= 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().Float64("sample_ratio", ratio).Msg("tracing enabled")
	return provider.Shutdown, nil
}
