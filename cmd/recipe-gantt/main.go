// Command recipe-gantt turns a recipe web page into an ingredient-by-step
// gantt chart using a fine-tuned language model.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/socialchef/recipe-gantt/internal/cache"
	"github.com/socialchef/recipe-gantt/internal/config"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/gantt"
	"github.com/socialchef/recipe-gantt/internal/logger"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
	"github.com/socialchef/recipe-gantt/internal/sentry"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/services/storage"
	"github.com/socialchef/recipe-gantt/internal/telemetry"
	"github.com/socialchef/recipe-gantt/internal/validation"
)

type options struct {
	configPath string
	output     string
	display    bool
	modelPath  string
	provider   string
	maxTokens  int
	promptOnly bool
}

// deps builds the collaborators run needs once config is known.
type deps struct {
	generator func(ctx context.Context, cfg *config.Config) (inference.Generator, error)
	scraper   func(ctx context.Context, cfg *config.Config) scraper.Scraper
}

func defaultDeps() deps {
	return deps{generator: loadGenerator, scraper: newScraper}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, defaultDeps()))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer, d deps) int {
	defer sentry.Recover()

	fs := flag.NewFlagSet("recipe-gantt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: recipe-gantt [flags] [recipe-url]")
		fs.PrintDefaults()
	}
	var opts options
	fs.StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	fs.StringVar(&opts.output, "output", "", "where to write the raw TSV (local path or s3://bucket/key)")
	fs.BoolVar(&opts.display, "display", true, "render the chart to stdout after generation")
	fs.StringVar(&opts.modelPath, "model", "", "path to a local GGUF model (skips the download)")
	fs.StringVar(&opts.provider, "provider", "", "inference provider: llamacpp-cli, llamacpp-server or openai")
	fs.IntVar(&opts.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	fs.BoolVar(&opts.promptOnly, "prompt-only", false, "print the model prompt and exit without generating")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if err := applyFlags(fs, opts, cfg); err != nil {
		fmt.Fprintf(stderr, "Invalid flags: %v\n", err)
		return 1
	}
	// The URL comes from the person running the command, so local and
	// intranet recipe pages are fair game.
	cfg.Scraper.AllowPrivateNetworks = true

	slog.SetDefault(logger.NewWithWriter(cfg.Env, stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env,
		cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	var generator inference.Generator
	if !opts.promptOnly {
		slog.Info("Loading model...", "provider", cfg.Model.Provider)
		generator, err = d.generator(ctx, cfg)
		if err != nil {
			return fail(err, "", "")
		}
	}

	url, err := recipeURL(fs.Args(), stdin, stderr)
	if err != nil {
		return fail(err, "", "")
	}

	processor := pipeline.NewProcessor(d.scraper(ctx, cfg), generator, inference.ParamsFromConfig(cfg.Model))
	processor.OnProgress(func(ctx context.Context, update pipeline.ProgressUpdate) {
		if update.Stage == pipeline.StageFailed {
			return
		}
		slog.InfoContext(ctx, update.Message, "run_id", update.RunID, "stage", update.Stage)
	})

	if opts.promptOnly {
		res, err := processor.BuildPrompt(ctx, url)
		if err != nil {
			return fail(err, "", url)
		}
		fmt.Fprintln(stdout, res.Prompt)
		return 0
	}

	res, err := processor.Run(ctx, url)
	if err != nil {
		return fail(err, "", url)
	}

	// The raw output is saved before parsing so a malformed table can be inspected.
	if err := writeOutput(ctx, cfg, res.Output); err != nil {
		return fail(err, res.RunID, url)
	}
	slog.Info("Written recipe gantt chart to "+cfg.Output.Path, "run_id", res.RunID)

	if !cfg.DisplayEnabled() {
		return 0
	}

	slog.Info("Opening gantt chart for display", "run_id", res.RunID)
	table, err := pipeline.Parse(ctx, res.Output)
	if err != nil {
		return fail(err, res.RunID, url)
	}
	for _, warning := range validation.CheckTable(res.Recipe, table) {
		slog.Warn(warning, "run_id", res.RunID)
	}
	if err := gantt.Render(stdout, table, gantt.RenderOptions{MaxColumnWidth: 24}); err != nil {
		return fail(err, res.RunID, url)
	}
	return 0
}

// applyFlags overrides config values with the flags given on the command line.
func applyFlags(fs *flag.FlagSet, opts options, cfg *config.Config) error {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Path = opts.output
		case "display":
			cfg.Output.Display = &opts.display
		case "model":
			cfg.Model.Path = opts.modelPath
		case "provider":
			cfg.Model.Provider = opts.provider
		case "max-tokens":
			cfg.Model.MaxTokens = opts.maxTokens
		}
	})
	return cfg.Validate()
}

func loadGenerator(ctx context.Context, cfg *config.Config) (inference.Generator, error) {
	var modelPath string
	if inference.NeedsModelFile(cfg) {
		path, err := inference.NewModelResolver(cfg).Resolve(ctx)
		if err != nil {
			return nil, err
		}
		modelPath = path
		slog.Debug("Model ready", "path", modelPath)
	}
	return inference.NewProvider(cfg, modelPath), nil
}

func newScraper(ctx context.Context, cfg *config.Config) scraper.Scraper {
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Recipe cache disabled", "error", err)
	}
	if rdb == nil {
		return scraper.NewFromConfig(cfg.Scraper, nil)
	}
	return scraper.NewFromConfig(cfg.Scraper, cache.NewRecipeCache(rdb))
}

func writeOutput(ctx context.Context, cfg *config.Config, output string) error {
	sink, err := storage.NewSink(ctx, cfg.Output.Path, cfg.AWSRegion)
	if err != nil {
		return err
	}
	return sink.Write(ctx, cfg.Output.Path, []byte(output))
}

// recipeURL takes the URL from the command line, or asks for it.
func recipeURL(args []string, in io.Reader, prompt io.Writer) (string, error) {
	if len(args) > 1 {
		return "", apperrors.NewValidationError("Too many arguments", "TOO_MANY_ARGS", "Pass a single recipe URL.")
	}
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}

	fmt.Fprint(prompt, "Please enter the recipe URL: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	url := strings.TrimSpace(line)
	if url == "" {
		return "", apperrors.NewValidationError("No recipe URL given", "URL_REQUIRED", "Pass the URL as an argument or type it at the prompt.")
	}
	return url, nil
}

func fail(err error, runID, url string) int {
	attrs := []any{"error", err}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		attrs = append(attrs, "code", appErr.Code())
		if s := appErr.RecoverySuggestion(); s != "" {
			attrs = append(attrs, "suggestion", s)
		}
		if appErr.IsOperational {
			slog.Error(appErr.Message, attrs...)
			return 1
		}
	}
	slog.Error("recipe-gantt failed", attrs...)
	sentry.CaptureError(err, runID, url)
	return 1
}
