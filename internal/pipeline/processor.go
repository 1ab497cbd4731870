// Package pipeline runs one recipe URL through scrape, prompt and generate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/gantt"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/services/ai"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/recipe"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/telemetry"
	"github.com/socialchef/recipe-gantt/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Stage string

const (
	StageScraping   Stage = "scraping"
	StageGenerating Stage = "generating"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

type ProgressUpdate struct {
	RunID   string
	URL     string
	Stage   Stage
	Message string
}

// ProgressFunc is called as a run moves between stages.
type ProgressFunc func(ctx context.Context, update ProgressUpdate)

type Result struct {
	RunID           string
	URL             string
	Title           string
	Recipe          recipe.Normalized
	FormattedRecipe string
	Prompt          string
	Output          string
	Validation      validation.Result
}

type runIDKey struct{}

// WithRunID makes the next run on ctx use id instead of a fresh UUID. Queued
// jobs use it so progress and results share the job's id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func newResult(ctx context.Context, url string) *Result {
	id := RunIDFromContext(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	return &Result{RunID: id, URL: url}
}

type Processor struct {
	scraper   scraper.Scraper
	generator inference.Generator
	params    inference.Params
	progress  ProgressFunc
}

func NewProcessor(s scraper.Scraper, g inference.Generator, params inference.Params) *Processor {
	return &Processor{scraper: s, generator: g, params: params}
}

// OnProgress registers a callback for stage changes.
func (p *Processor) OnProgress(fn ProgressFunc) {
	p.progress = fn
}

func (p *Processor) report(ctx context.Context, res *Result, stage Stage, message string) {
	if p.progress == nil {
		return
	}
	p.progress(ctx, ProgressUpdate{RunID: res.RunID, URL: res.URL, Stage: stage, Message: message})
}

func tracer() trace.Tracer {
	return telemetry.Tracer("pipeline")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// BuildPrompt scrapes url and builds the model prompt without generating.
func (p *Processor) BuildPrompt(ctx context.Context, url string) (*Result, error) {
	res := newResult(ctx, url)
	if err := p.buildPrompt(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) buildPrompt(ctx context.Context, res *Result) error {
	p.report(ctx, res, StageScraping, "Downloading recipe")

	scrapeCtx, span := tracer().Start(ctx, "gantt.scrape", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
		attribute.String("recipe.url", res.URL),
	))
	scraped := scraper.Scrape(scrapeCtx, p.scraper, res.URL)
	err := scrapeError(res.URL, scraped.Err)
	endSpan(span, err)
	if err != nil {
		return err
	}

	_, span = tracer().Start(ctx, "gantt.prompt")
	res.Title = scraped.Recipe.Title
	res.Recipe = recipe.Extract(scraped.Recipe)
	res.FormattedRecipe = res.Recipe.Format()
	res.Prompt = ai.BuildGanttPrompt(res.FormattedRecipe)
	res.Validation = validation.QuickValidate(res.Recipe)
	span.SetAttributes(
		attribute.Int("recipe.ingredients", len(res.Recipe.Ingredients)),
		attribute.Int("recipe.steps", len(res.Recipe.Steps)),
		attribute.Int("prompt.length", len(res.Prompt)),
	)
	span.End()

	if res.Validation.Confidence != validation.ConfidenceHigh {
		slog.WarnContext(ctx, "Recipe may produce a poor chart",
			"run_id", res.RunID,
			"reason", res.Validation.Reason,
			"missing", res.Validation.Missing)
	}

	return nil
}

func scrapeError(url string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scraper.ErrUnsupportedSite):
		return apperrors.NewUnsupportedSiteError(url, err)
	case errors.Is(err, scraper.ErrInvalidURL):
		return apperrors.NewValidationError(fmt.Sprintf("Invalid recipe URL: %s", url), "INVALID_URL", "Please provide a full http(s) link to a recipe page.")
	case errors.Is(err, scraper.ErrBlockedHost):
		return apperrors.NewValidationError(fmt.Sprintf("Recipe URL is not allowed: %s", url), "URL_NOT_ALLOWED", "Use a link to a public recipe website.")
	case errors.Is(err, scraper.ErrPageNotFound):
		return apperrors.NewScraperError("Recipe page not found", "PAGE_NOT_FOUND", err)
	case errors.Is(err, scraper.ErrRateLimited):
		return apperrors.NewScraperError("Recipe site is rate limiting requests", "RATE_LIMITED", err)
	default:
		return apperrors.NewScraperError("Failed to download recipe", "SCRAPE_FAILED", err)
	}
}

// Run executes the whole pipeline once. Generation is never retried here.
func (p *Processor) Run(ctx context.Context, url string) (*Result, error) {
	res := newResult(ctx, url)
	start := time.Now()

	ctx, span := tracer().Start(ctx, "gantt.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
		attribute.String("recipe.url", url),
	))

	err := p.run(ctx, res)
	endSpan(span, err)

	status := "success"
	if err != nil {
		status = "failed"
		p.report(ctx, res, StageFailed, err.Error())
	} else {
		p.report(ctx, res, StageCompleted, "Gantt chart generated")
	}
	metrics.RecordRun(ctx, status, time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) run(ctx context.Context, res *Result) error {
	if err := p.buildPrompt(ctx, res); err != nil {
		return err
	}

	p.report(ctx, res, StageGenerating, "Generating gantt chart...")

	genCtx, span := tracer().Start(ctx, "gantt.generate", trace.WithAttributes(
		attribute.Int("params.max_tokens", p.params.MaxTokens),
	))
	output, err := p.generate(genCtx, res.Prompt)
	endSpan(span, err)
	if err != nil {
		return err
	}

	res.Output = output
	slog.InfoContext(ctx, "Generated gantt chart", "run_id", res.RunID, "output_bytes", len(output))
	return nil
}

func (p *Processor) generate(ctx context.Context, prompt string) (string, error) {
	completion, err := p.generator.Generate(ctx, prompt, p.params)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", apperrors.NewGenerationError("Failed to generate gantt chart", "GENERATION_FAILED", err)
	}

	text, err := completion.FirstText()
	if err != nil {
		return "", apperrors.NewGenerationError("Model returned no output", "NO_COMPLETION", err)
	}
	return text, nil
}

// Parse turns raw model output into a table. Malformed output is reported,
// never repaired.
func Parse(ctx context.Context, output string) (*gantt.Table, error) {
	_, span := tracer().Start(ctx, "gantt.parse")
	table, err := gantt.ParseTSV(output)
	endSpan(span, err)
	if err != nil {
		return nil, apperrors.NewParseError("Model output is not a valid tab-separated table", "TSV_PARSE_ERROR", err)
	}
	return table, nil
}
