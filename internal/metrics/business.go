package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("recipe-gantt/business")

	// Run metrics
	GanttRunsTotal   metric.Int64Counter
	GanttRunDuration metric.Float64Histogram

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter
	ExternalAPIDuration   metric.Float64Histogram

	// AI metrics
	AIGenerationDuration metric.Float64Histogram

	// Provider fallback metrics
	ProviderFallbackTotal metric.Int64Counter
)

// Init registers the instruments. Until it runs every Record* helper is a no-op.
func Init() error {
	var err error

	GanttRunsTotal, err = meter.Int64Counter(
		"gantt.runs.total",
		metric.WithDescription("Total number of recipe gantt runs"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	GanttRunDuration, err = meter.Float64Histogram(
		"gantt.run.duration",
		metric.WithDescription("Duration of a recipe gantt run from fetch to model output"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	AIGenerationDuration, err = meter.Float64Histogram(
		"ai.generation.duration",
		metric.WithDescription("Duration of gantt chart generation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return err
	}

	ProviderFallbackTotal, err = meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Total number of provider fallback events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordRun counts a finished run and its duration.
func RecordRun(ctx context.Context, status string, seconds float64) {
	if GanttRunsTotal != nil {
		GanttRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
	if GanttRunDuration != nil {
		GanttRunDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordExternalCall counts a call to a scraper, download or model endpoint.
func RecordExternalCall(ctx context.Context, provider string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if ExternalAPICallsTotal != nil {
		ExternalAPICallsTotal.Add(ctx, 1, attrs)
	}
	if ExternalAPIDuration != nil {
		ExternalAPIDuration.Record(ctx, seconds, attrs)
	}
}

// RecordGeneration records a model inference pass.
func RecordGeneration(ctx context.Context, provider string, seconds float64) {
	if AIGenerationDuration != nil {
		AIGenerationDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
	}
	RecordExternalCall(ctx, provider, seconds)
}

// RecordFallback counts a switch from the primary to the secondary provider.
func RecordFallback(ctx context.Context, from, to, reason string) {
	if ProviderFallbackTotal == nil {
		return
	}
	ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from_provider", from),
		attribute.String("to_provider", to),
		attribute.String("reason", reason),
	))
}
