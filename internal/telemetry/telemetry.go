// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry sets up the pipeline's own instrumentation: an OTel
// tracer provider with a configurable span exporter, and a meter provider
// backed by a Prometheus exporter for follow-mode metrics.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/runlens/runlens/internal/telemetry/export"
	"github.com/runlens/runlens/pkg/errors"
)

// Exporter kinds.
const (
	ExporterConsole  = "console"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp_http"
	ExporterNone     = "none"
)

// Config selects and configures the span exporter.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Exporter is one of console, otlp, otlp_http, none.
	Exporter string

	// Endpoint is the collector endpoint for the OTLP exporters.
	Endpoint string

	// Insecure disables TLS on OTLP connections.
	Insecure bool

	// Headers are attached to every OTLP export request.
	Headers map[string]string
}

// Provider owns the configured tracer and meter providers.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Setup initializes telemetry and installs the global providers.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(mp)

	return &Provider{tp: tp, mp: mp}, nil
}

// newExporter builds the configured span exporter; nil for "none".
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterConsole:
		return export.NewConsoleExporter(export.ConsoleConfig{PrettyPrint: true})
	case ExporterOTLP:
		return export.NewOTLPExporter(ctx, export.OTLPConfig{
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
		})
	case ExporterOTLPHTTP:
		return export.NewOTLPHTTPExporter(ctx, export.OTLPHTTPConfig{
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Headers:  cfg.Headers,
		})
	default:
		return nil, &errors.ValidationError{
			Field:      "telemetry.exporter",
			Message:    fmt.Sprintf("unknown exporter %q", cfg.Exporter),
			Suggestion: "use console, otlp, otlp_http, or none",
		}
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
