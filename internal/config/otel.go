package config

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var traceProvider *sdktrace.TracerProvider

func setupTraceProvider(ctx context.Context) error {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(Config.OpenTelemetryGrpcEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return err
	}

	traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("sheriff"),
		)),
	)
	otel.SetTracerProvider(traceProvider)
	return nil
}

func ShutdownTraceProvider() error {
	if traceProvider == nil {
		return nil
	}
	return traceProvider.Shutdown(context.Background())
}

// OtelMiddleware opens a span per incoming HTTP request.
type OtelMiddleware struct {
	tracer trace.Tracer
}

func NewOtelMiddleware() *OtelMiddleware {
	return &OtelMiddleware{
		tracer: otel.Tracer("negroni-otel"),
	}
}

func (o *OtelMiddleware) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	ctx, span := o.tracer.Start(r.Context(), r.URL.Path)
	span.SetAttributes(attribute.String("http.method", r.Method))
	defer span.End()

	next(rw, r.WithContext(ctx))
}
