package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	otlpmetricgrpc "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otlpmetrichttp "go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter creates the meter provider and installs it globally.
func InitMeter(ctx context.Context, s *Settings) (*sdkmetric.MeterProvider, error) {
	if s == nil {
		return nil, fmt.Errorf("observability: meter initialization requires settings")
	}

	var exporter sdkmetric.Exporter
	if s.Enabled {
		var err error
		exporter, err = NewOTLPMetricExporter(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("observability: failed to create OTLP metric exporter: %w", err)
		}
	}

	mp, err := NewMeterProvider(ctx, s, exporter)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)
	return mp, nil
}

// NewMeterProvider attaches a periodic reader for the exporter. Disabled
// settings produce a provider with no readers.
func NewMeterProvider(ctx context.Context, s *Settings, exporter sdkmetric.Exporter) (*sdkmetric.MeterProvider, error) {
	if s == nil {
		return nil, fmt.Errorf("observability: meter provider requires settings")
	}
	if !s.Enabled {
		return sdkmetric.NewMeterProvider(), nil
	}
	if exporter == nil {
		return nil, fmt.Errorf("observability: metric exporter cannot be nil when OpenTelemetry is enabled")
	}

	res, err := newResource(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to build resource: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(s.MetricExportInterval))),
	), nil
}

// NewOTLPMetricExporter picks the OTLP transport named by the settings.
func NewOTLPMetricExporter(ctx context.Context, s *Settings) (sdkmetric.Exporter, error) {
	switch s.ExporterProtocol {
	case defaultExporterProtocol:
		endpoint, err := normalizeOTLPHTTPPath(s.ExporterEndpoint, "/v1/metrics")
		if err != nil {
			return nil, err
		}
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(endpoint)}
		if strings.HasPrefix(endpoint, "http://") {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case protocolGRPC:
		endpoint, insecure, err := parseGRPCEndpoint(s.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported metric exporter protocol %q", s.ExporterProtocol)
	}
}
