package inference

import (
	"context"
	"log/slog"

	"github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/metrics"
)

// FallbackProvider tries a second backend when the first fails in a way
// another backend could avoid.
type FallbackProvider struct {
	primary       Generator
	secondary     Generator
	primaryName   string
	secondaryName string
}

func NewFallbackProvider(primary Generator, primaryName string, secondary Generator, secondaryName string) *FallbackProvider {
	return &FallbackProvider{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
	}
}

func (f *FallbackProvider) Generate(ctx context.Context, prompt string, params Params) (*Completion, error) {
	result, err := f.primary.Generate(ctx, prompt, params)
	if err == nil {
		return result, nil
	}

	providerErr := ClassifyError(err, f.primaryName)

	if !IsRetryableError(err) || ctx.Err() != nil {
		slog.InfoContext(ctx, "Primary provider failed with non-retryable error, not attempting fallback",
			"provider", f.primaryName,
			"error_type", providerErr.Type,
			"error", err.Error())
		return nil, err
	}

	slog.InfoContext(ctx, "Primary provider failed with retryable error, attempting fallback",
		"provider", f.primaryName,
		"fallback", f.secondaryName,
		"error_type", providerErr.Type,
		"error", err.Error())

	metrics.RecordFallback(ctx, f.primaryName, f.secondaryName, providerErr.Type)

	result, fallbackErr := f.secondary.Generate(ctx, prompt, params)
	if fallbackErr == nil {
		slog.InfoContext(ctx, "Fallback provider succeeded",
			"provider", f.secondaryName,
			"primary_error_type", providerErr.Type)
		return result, nil
	}

	fallbackProviderErr := ClassifyError(fallbackErr, f.secondaryName)
	slog.ErrorContext(ctx, "Both primary and fallback providers failed",
		"primary_error_type", providerErr.Type,
		"primary_error", err.Error(),
		"fallback_error_type", fallbackProviderErr.Type,
		"fallback_error", fallbackErr.Error())

	return nil, errors.NewGenerationError(
		"both primary and fallback providers failed",
		"PROVIDER_FALLBACK_FAILED",
		err,
	)
}
