package observability

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jbrache/goose/internal/types"
)

const (
	defaultServiceName      = "agentspace"
	defaultExporterProtocol = "http/protobuf"
	protocolGRPC            = "grpc"
	resourceServiceNameKey  = "service.name"
	defaultExportInterval   = 60 * time.Second
)

// Settings holds the OpenTelemetry options derived from the server configuration.
type Settings struct {
	Enabled              bool
	ServiceName          string
	ServiceVersion       string
	ExporterEndpoint     string
	ExporterProtocol     string
	ResourceAttributes   map[string]string
	TracesSampler        string
	TracesSamplerArg     float64
	MetricExportInterval time.Duration
}

// SettingsFromConfig resolves and validates telemetry settings.
func SettingsFromConfig(cfg *types.Config, version string) (*Settings, error) {
	if cfg == nil {
		return nil, fmt.Errorf("observability: nil configuration")
	}

	attrs, err := parseResourceAttributes(cfg.OTelResourceAttributes)
	if err != nil {
		return nil, fmt.Errorf("observability: OTEL_RESOURCE_ATTRIBUTES: %w", err)
	}

	settings := &Settings{
		Enabled:            cfg.OTelEnabled,
		ServiceName:        strings.TrimSpace(cfg.OTelServiceName),
		ServiceVersion:     version,
		ExporterEndpoint:   strings.TrimSpace(cfg.OTelExporterOTLPEndpoint),
		ExporterProtocol:   cfg.OTelExporterOTLPProtocol,
		ResourceAttributes: attrs,
		TracesSampler:      strings.TrimSpace(cfg.OTelTracesSampler),
		TracesSamplerArg:   cfg.OTelTracesSamplerArg,
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate fills defaults and rejects settings the exporters cannot use.
func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("observability: settings are nil")
	}

	if s.ServiceName == "" {
		s.ServiceName = defaultServiceName
	}
	s.ExporterProtocol = strings.ToLower(strings.TrimSpace(s.ExporterProtocol))
	if s.ExporterProtocol == "" {
		s.ExporterProtocol = defaultExporterProtocol
	}
	if s.TracesSampler == "" {
		s.TracesSampler = "always_on"
	}
	if s.MetricExportInterval <= 0 {
		s.MetricExportInterval = defaultExportInterval
	}
	if s.ResourceAttributes == nil {
		s.ResourceAttributes = make(map[string]string)
	}
	if _, ok := s.ResourceAttributes[resourceServiceNameKey]; !ok {
		s.ResourceAttributes[resourceServiceNameKey] = s.ServiceName
	}

	if !s.Enabled {
		return nil
	}

	if s.ExporterEndpoint == "" {
		return fmt.Errorf("observability: OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}

	switch s.ExporterProtocol {
	case defaultExporterProtocol:
		parsed, err := url.Parse(s.ExporterEndpoint)
		if err != nil {
			return fmt.Errorf("observability: invalid OTLP endpoint: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("observability: OTLP endpoint %q needs an http or https scheme for http/protobuf", s.ExporterEndpoint)
		}
		if parsed.Host == "" {
			return fmt.Errorf("observability: OTLP endpoint %q has no host", s.ExporterEndpoint)
		}
	case protocolGRPC:
		if _, _, err := parseGRPCEndpoint(s.ExporterEndpoint); err != nil {
			return fmt.Errorf("observability: invalid OTLP gRPC endpoint: %w", err)
		}
	default:
		return fmt.Errorf("observability: unsupported OTLP protocol %q", s.ExporterProtocol)
	}

	if strings.EqualFold(s.TracesSampler, "traceidratio") && (s.TracesSamplerArg <= 0 || s.TracesSamplerArg > 1) {
		return fmt.Errorf("observability: OTEL_TRACES_SAMPLER_ARG must be in (0, 1] for traceidratio")
	}

	return nil
}

func parseResourceAttributes(input string) (map[string]string, error) {
	attributes := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid resource attribute %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("resource attribute key cannot be empty")
		}
		attributes[key] = strings.TrimSpace(value)
	}
	return attributes, nil
}

// Init installs the global tracer and meter providers. When telemetry is
// disabled the providers are still installed but never export.
func Init(ctx context.Context, cfg *types.Config, version string, logger *zap.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	settings, err := SettingsFromConfig(cfg, version)
	if err != nil {
		return noop, err
	}

	tp, err := InitTracer(ctx, settings)
	if err != nil {
		return noop, err
	}

	mp, err := InitMeter(ctx, settings)
	if err != nil {
		_ = NewShutdownFunc(tp, nil, logger)(ctx)
		return noop, err
	}

	if settings.Enabled {
		logger.Info("OpenTelemetry export enabled",
			zap.String("service", settings.ServiceName),
			zap.String("endpoint", settings.ExporterEndpoint),
			zap.String("protocol", settings.ExporterProtocol),
			zap.String("sampler", settings.TracesSampler))
	}

	return NewShutdownFunc(tp, mp, logger), nil
}
