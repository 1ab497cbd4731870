package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/socialchef/recipe-gantt/internal/config"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pancakePage = `<!doctype html>
<html><head><title>Pancakes</title>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Pancakes",
  "recipeIngredient": ["100g plain flour", "2 eggs", "300ml milk"],
  "recipeInstructions": "Whisk the flour, eggs and milk. Rest the batter. Fry in a hot pan."
}
</script>
</head><body><h1>Pancakes</h1></body></html>`

const pancakeTSV = "Whisk the flour, eggs and milk.\tRest the batter.\tFry in a hot pan.\n" +
	"100g plain flour\tX\t\t\n" +
	"2 eggs\tX\t\t\n" +
	"300ml milk\tX\t\t\n"

// raggedTSV has rows of different widths, which no table can hold.
const raggedTSV = "Whisk.\tFry.\n" +
	"flour\tX\n" +
	"milk\tX\t\t\t\n"

func recipeSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pancakes":
			w.Write([]byte(pancakePage))
		case "/blog":
			w.Write([]byte(`<html><body><p>Holiday photos.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeGenerator struct {
	output string
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, params inference.Params) (*inference.Completion, error) {
	g.calls++
	return &inference.Completion{Choices: []inference.Choice{{Text: g.output}}}, nil
}

func testDeps(g *fakeGenerator) deps {
	return deps{
		generator: func(context.Context, *config.Config) (inference.Generator, error) { return g, nil },
		scraper: func(_ context.Context, cfg *config.Config) scraper.Scraper {
			noRetry := utils.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
			return scraper.NewSchemaScraper(scraper.Options{
				Timeout:              5 * time.Second,
				Retry:                &noRetry,
				AllowPrivateNetworks: cfg.Scraper.AllowPrivateNetworks,
			})
		},
	}
}

type cliResult struct {
	code   int
	stdout string
	stderr string
	output string
}

// runCLI runs the command with a throwaway config path and output file.
func runCLI(t *testing.T, g *fakeGenerator, stdin string, args ...string) cliResult {
	t.Helper()
	t.Setenv("REDIS_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("SENTRY_DSN", "")

	dir := t.TempDir()
	out := filepath.Join(dir, "chart.tsv")
	full := append([]string{"-config", filepath.Join(dir, "missing.yaml"), "-output", out}, args...)

	var stdout, stderr bytes.Buffer
	code := run(full, strings.NewReader(stdin), &stdout, &stderr, testDeps(g))

	res := cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
	if data, err := os.ReadFile(out); err == nil {
		res.output = string(data)
	}
	return res
}

func TestRun_GeneratesWritesAndRenders(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: pancakeTSV}

	res := runCLI(t, g, "", site.URL+"/pancakes")

	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, pancakeTSV, res.output)
	assert.Contains(t, res.stderr, "Loading model...")
	assert.Contains(t, res.stderr, "Written recipe gantt chart to")
	assert.Contains(t, res.stderr, "Opening gantt chart for display")
	assert.Contains(t, res.stdout, "2 eggs")
	assert.Contains(t, res.stdout, "✓")
	assert.NotContains(t, res.stdout, "level=")
}

func TestRun_PromptsForURL(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: pancakeTSV}

	res := runCLI(t, g, site.URL+"/pancakes\n")

	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "Please enter the recipe URL: ")
	assert.Equal(t, pancakeTSV, res.output)
}

func TestRun_DisplayDisabled(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: pancakeTSV}

	res := runCLI(t, g, "", "-display=false", site.URL+"/pancakes")

	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, pancakeTSV, res.output)
	assert.Empty(t, res.stdout)
	assert.NotContains(t, res.stderr, "Opening gantt chart for display")
}

func TestRun_MalformedOutputKeepsFile(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: raggedTSV}

	res := runCLI(t, g, "", site.URL+"/pancakes")

	assert.Equal(t, 1, res.code)
	assert.Equal(t, raggedTSV, res.output)
	assert.Contains(t, res.stderr, "TSV_PARSE_ERROR")
	assert.Empty(t, res.stdout)
}

func TestRun_UnsupportedSite(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: pancakeTSV}

	res := runCLI(t, g, "", site.URL+"/blog")

	assert.Equal(t, 1, res.code)
	assert.Equal(t, 0, g.calls)
	assert.Empty(t, res.output)
	assert.Contains(t, res.stderr, "UNSUPPORTED_SITE")
	assert.Contains(t, res.stderr, apperrors.SupportedSitesURL)
}

func TestRun_PromptOnly(t *testing.T) {
	site := recipeSite(t)
	g := &fakeGenerator{output: pancakeTSV}

	res := runCLI(t, g, "", "-prompt-only", site.URL+"/pancakes")

	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, 0, g.calls)
	assert.Empty(t, res.output)
	assert.Contains(t, res.stdout, "### Response:")
	assert.Contains(t, res.stdout, "300ml milk")
}

func TestRun_FlagErrors(t *testing.T) {
	g := &fakeGenerator{}

	assert.Equal(t, 0, runCLI(t, g, "", "-h").code)
	assert.Equal(t, 1, runCLI(t, g, "", "-no-such-flag").code)
	assert.Equal(t, 1, runCLI(t, g, "", "-provider", "ollama", "https://example.com").code)
	assert.Equal(t, 0, g.calls)
}
