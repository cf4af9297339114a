// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Providers holds the SDK providers installed by Setup.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// Setup installs global tracer and meter providers labelled with the
// configured service name. With TraceStdout set, finished spans are
// written to w. Call Shutdown before exit to flush them.
func Setup(ctx context.Context, cfg types.ObservabilityConfig, w io.Writer) (*Providers, error) {
	name := cfg.ServiceName
	if name == "" {
		name = meterName
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	topts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		topts = append(topts, sdktrace.WithBatcher(exp))
	}

	reader := sdkmetric.NewManualReader()
	p := &Providers{
		Tracer: sdktrace.NewTracerProvider(topts...),
		Meter:  sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)),
		Reader: reader,
	}
	otel.SetTracerProvider(p.Tracer)
	otel.SetMeterProvider(p.Meter)
	return p, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Tracer.Shutdown(ctx), p.Meter.Shutdown(ctx))
}

// CounterTotals collects the meter provider and sums every int64 counter
// across its attribute sets.
func (p *Providers) CounterTotals(ctx context.Context) (map[string]int64, error) {
	return collectCounters(ctx, p.Reader)
}

func collectCounters(ctx context.Context, r *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := r.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals, nil
}
