// Package otel wires OpenTelemetry tracing and metrics for the matching
// engine, adapted from the teacher's pkg/otel/otel.go: a single resource +
// tracer/meter provider pair exported over OTLP/gRPC, renamed from the
// teacher's order-service/matching-engine dual-resource split (this domain
// has one process, not two) to a single "matching-engine" resource.
package otel

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceMatchingEngine = "matching-engine"

var (
	tracer          trace.Tracer
	tracerProvider  *sdktrace.TracerProvider
	meterProvider   *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	CollectorEnabled bool
}

// Init initializes tracing and metrics per cfg, returning a cleanup
// function to call at shutdown. When cfg.CollectorEnabled is false, Init
// leaves the no-op global providers in place and returns a no-op cleanup —
// the engine's spans/metrics calls stay safe to make either way.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if !cfg.CollectorEnabled {
		return func() {}, nil
	}

	resource := buildResource(cfg.ServiceVersion)
	var cleanup []func()

	tp, err := initTracerProvider(cfg, resource)
	if err != nil {
		log.Printf("otel: failed to initialize tracer provider: %v", err)
	} else {
		tracerProvider = tp
		tracer = tp.Tracer(ServiceMatchingEngine)
		cleanup = append(cleanup, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("otel: error shutting down tracer provider: %v", err)
			}
		})
	}

	mp, err := initMeterProvider(cfg, resource)
	if err != nil {
		log.Printf("otel: failed to initialize meter provider: %v", err)
	} else {
		meterProvider = mp
		otel.SetMeterProvider(mp)
		cleanup = append(cleanup, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := mp.Shutdown(ctx); err != nil {
				log.Printf("otel: error shutting down meter provider: %v", err)
			}
		})
	}

	return func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

func buildResource(serviceVersion string) *sdkresource.Resource {
	extra, err := sdkresource.New(context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(ServiceMatchingEngine),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Printf("otel: failed to build resource: %v", err)
		return sdkresource.Default()
	}
	merged, err := sdkresource.Merge(sdkresource.Default(), extra)
	if err != nil {
		log.Printf("otel: failed to merge resource: %v", err)
		return sdkresource.Default()
	}
	return merged
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
	)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)
	return tp, nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(5*time.Second))),
		sdkmetric.WithResource(resource),
	)
	return mp, nil
}

// Tracer returns the matching engine's tracer, or a no-op tracer if Init
// was never called or CollectorEnabled was false.
func Tracer() trace.Tracer {
	if tracer != nil {
		return tracer
	}
	return otel.Tracer(ServiceMatchingEngine)
}
