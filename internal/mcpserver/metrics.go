package mcpserver

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// toolKind is the backend operation behind a tool.
type toolKind string

const (
	toolKindAnswer    toolKind = "answer"
	toolKindDocuments toolKind = "documents"
	toolKindResearch  toolKind = "research"
)

const meterName = "agentspace/mcpserver"

// callMetrics counts the calls of one tool. MCP invocations are only counted
// here, in memory; nothing on the tool path writes to disk.
type callMetrics struct {
	attrs    attribute.Set
	calls    metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// newCallMetrics creates the instruments on the global meter provider.
// Instruments created before observability.Init follow the provider it installs.
func newCallMetrics(toolName string, kind toolKind) *callMetrics {
	return newCallMetricsWithMeter(otel.Meter(meterName), toolName, kind)
}

func newCallMetricsWithMeter(meter metric.Meter, toolName string, kind toolKind) *callMetrics {
	m := &callMetrics{
		attrs: attribute.NewSet(
			attribute.String("mcp.tool.name", toolName),
			attribute.String("agentspace.tool.kind", string(kind)),
		),
	}

	var err error
	if m.calls, err = meter.Int64Counter("agentspace.mcp.requests.total",
		metric.WithDescription("Tool calls received over MCP"),
		metric.WithUnit("{call}"),
	); err != nil {
		otel.Handle(err)
	}
	if m.failures, err = meter.Int64Counter("agentspace.mcp.errors.total",
		metric.WithDescription("Tool calls answered with an error result"),
		metric.WithUnit("{call}"),
	); err != nil {
		otel.Handle(err)
	}
	if m.latency, err = meter.Float64Histogram("agentspace.mcp.response_time",
		metric.WithDescription("Time from tool call to result"),
		metric.WithUnit("ms"),
	); err != nil {
		otel.Handle(err)
	}
	return m
}

// observe records one finished call. err is the failure shown to the client, if any.
func (m *callMetrics) observe(ctx context.Context, elapsed time.Duration, err error) {
	attrs := metric.WithAttributeSet(m.attrs)
	if m.calls != nil {
		m.calls.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
	if err != nil && m.failures != nil {
		m.failures.Add(ctx, 1, attrs, metric.WithAttributes(attribute.String("error.type", errorType(err))))
	}
}
