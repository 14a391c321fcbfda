package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterInvocationGauge registers an observable gauge that reports
// cumulative totals from the recorder's store.
// Call it after observability.Init so the global meter provider is set.
func RegisterInvocationGauge(r *Recorder) (metric.Registration, error) {
	meter := otel.Meter("agentspace/metrics")

	gauge, err := meter.Int64ObservableGauge(
		"agentspace.invocations.total",
		metric.WithDescription("Cumulative query command invocations by mode"),
		metric.WithUnit("{invocations}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		stats := r.Totals()
		for _, mode := range AllModes {
			// missing store reports zeros
			observer.ObserveInt64(gauge, stats[mode], metric.WithAttributes(
				attribute.String("mode", string(mode)),
			))
		}
		return nil
	}, gauge)
}
