package tracing

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	tcr "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu sync.Mutex
	tp *trace.TracerProvider
)

type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector; empty keeps the noop tracer.
	Endpoint      string
	SamplingRatio float64
}

// Init installs a batching OTLP tracer provider as the global provider.
func Init(ctx context.Context, cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("tracing service name cannot be empty")
	}
	if cfg.Endpoint == "" {
		log.Info().Msg("OTLP endpoint not set, tracing disabled")
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	if tp != nil {
		log.Warn().Msg("Tracing already initialized!")
		return nil
	}

	exporter, err := otlptrace.New(ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return err
	}
	resources, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("telemetry.sdk.language", "go"),
		),
	)
	if err != nil {
		return err
	}
	tp = trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRatio))),
		trace.WithBatcher(exporter),
		trace.WithResource(resources),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	log.Info().
		Str("collectorURL", cfg.Endpoint).
		Str("serviceName", cfg.ServiceName).
		Float64("samplingRatio", cfg.SamplingRatio).
		Msg("Tracer initialized!")
	return nil
}

// GetTracer returns a tracer instance. If the tracer provider is not initialized, it returns a noop tracer.
// Pass the name of the package from where the tracer is being used.
func GetTracer(name string) tcr.Tracer {
	mu.Lock()
	defer mu.Unlock()
	if tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return tp.Tracer(name)
}

func ShutdownTracer(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()
	if tp == nil {
		return
	}
	log.Info().Msg("Tracer shutting down...")
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown failed")
		return
	}
	tp = nil
	log.Info().Msg("Tracer shutdown complete!!!")
}
