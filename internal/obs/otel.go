package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type OTELConfig struct {
	Enable      bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

type OTel struct {
	TracerProvider *sdktrace.TracerProvider
}

// SetupOTel installs the W3C propagators and, when enabled, an OTLP/gRPC
// batch exporter as the global tracer provider.
func SetupOTel(ctx context.Context, cfg *OTELConfig) (*OTel, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !cfg.Enable {
		return &OTel{}, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(512), sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	return &OTel{TracerProvider: tp}, nil
}

func (o *OTel) Shutdown(ctx context.Context) error {
	if o.TracerProvider != nil {
		return o.TracerProvider.Shutdown(ctx)
	}
	return nil
}
