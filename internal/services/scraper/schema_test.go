package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/socialchef/recipe-gantt/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonLDPage = `<!doctype html>
<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"Example"}</script>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "Organization", "name": "Example"},
    {
      "@type": ["Recipe", "NewsArticle"],
      "name": "Yorkshire Puddings &amp; Gravy",
      "recipeIngredient": ["100g plain flour", "3 eggs", "300ml  milk"],
      "recipeInstructions": [
        {"@type": "HowToSection", "name": "Batter", "itemListElement": [
          {"@type": "HowToStep", "text": "Heat oven to 230&deg;C."},
          {"@type": "HowToStep", "text": "Whisk the flour, eggs and milk."}
        ]},
        {"@type": "HowToStep", "text": "<p>Bake for 20 mins.</p>"}
      ]
    }
  ]
}
</script>
</head><body></body></html>`

func testRetry() *utils.RetryConfig {
	cfg := utils.PageFetchRetryConfig(2 * time.Second)
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return &cfg
}

func TestParseHTML_JSONLDGraph(t *testing.T) {
	recipe, err := ParseHTML(strings.NewReader(jsonLDPage))
	require.NoError(t, err)

	assert.Equal(t, "Yorkshire Puddings & Gravy", recipe.Title)
	assert.Equal(t, []string{"100g plain flour", "3 eggs", "300ml milk"}, recipe.Ingredients)
	assert.Equal(t, []string{
		"Heat oven to 230°C.",
		"Whisk the flour, eggs and milk.",
		"Bake for 20 mins.",
	}, recipe.Instructions)
}

func TestParseHTML_InstructionVariants(t *testing.T) {
	tests := []struct {
		name         string
		instructions string
		want         []string
	}{
		{
			name:         "single string block",
			instructions: `"Boil water. Add pasta. Drain."`,
			want:         []string{"Boil water. Add pasta. Drain."},
		},
		{
			name:         "string with line breaks",
			instructions: `"Boil water.\n\nAdd pasta.\nDrain."`,
			want:         []string{"Boil water.", "Add pasta.", "Drain."},
		},
		{
			name:         "list of strings",
			instructions: `["Boil water.", "Add pasta."]`,
			want:         []string{"Boil water.", "Add pasta."},
		},
		{
			name:         "step without text uses name",
			instructions: `[{"@type": "HowToStep", "name": "Serve."}]`,
			want:         []string{"Serve."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `<script type="application/ld+json">{"@type":"Recipe","name":"Pasta","recipeIngredient":["pasta"],"recipeInstructions":` +
				tt.instructions + `}</script>`
			recipe, err := ParseHTML(strings.NewReader(page))
			require.NoError(t, err)
			assert.Equal(t, tt.want, recipe.Instructions)
		})
	}
}

func TestParseHTML_LegacyIngredientsAndArrayRoot(t *testing.T) {
	page := `<script type="application/ld+json">[{"@type":"Person"},{"@type":"Recipe","ingredients":"salt"}]</script>`

	recipe, err := ParseHTML(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"salt"}, recipe.Ingredients)
	assert.NotNil(t, recipe.Instructions)
	assert.Empty(t, recipe.Instructions)
}

func TestParseHTML_Microdata(t *testing.T) {
	page := `<div itemscope itemtype="https://schema.org/Recipe">
  <h1 itemprop="name">Toast</h1>
  <ul>
    <li itemprop="recipeIngredient">1 slice bread</li>
    <li itemprop="recipeIngredient">butter</li>
  </ul>
  <ol itemprop="recipeInstructions">
    <li>Toast the bread.</li>
    <li>Spread the butter.</li>
  </ol>
</div>`

	recipe, err := ParseHTML(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Toast", recipe.Title)
	assert.Equal(t, []string{"1 slice bread", "butter"}, recipe.Ingredients)
	assert.Equal(t, []string{"Toast the bread.", "Spread the butter."}, recipe.Instructions)
}

func TestParseHTML_NoRecipe(t *testing.T) {
	page := `<html><script type="application/ld+json">{not json}</script><p>Just a blog post.</p></html>`

	_, err := ParseHTML(strings.NewReader(page))
	assert.ErrorIs(t, err, ErrUnsupportedSite)
}

func TestSchemaScraper_Scrape(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(jsonLDPage))
	}))
	defer server.Close()

	s := NewSchemaScraper(Options{UserAgent: "recipe-gantt-test", Retry: testRetry(), AllowPrivateNetworks: true})
	recipe, err := s.Scrape(context.Background(), server.URL+"/yorkshire-puddings")
	require.NoError(t, err)

	assert.Equal(t, "recipe-gantt-test", gotUA)
	assert.Equal(t, "127.0.0.1", recipe.Host)
	assert.Len(t, recipe.Ingredients, 3)
}

func TestSchemaScraper_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrPageNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			s := NewSchemaScraper(Options{Retry: testRetry(), AllowPrivateNetworks: true})
			_, err := s.Scrape(context.Background(), server.URL)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSchemaScraper_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(jsonLDPage))
	}))
	defer server.Close()

	s := NewSchemaScraper(Options{Retry: testRetry(), AllowPrivateNetworks: true})
	recipe, err := s.Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "Yorkshire Puddings & Gravy", recipe.Title)
}

func TestSchemaScraper_RefusesPrivateHosts(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(jsonLDPage))
	}))
	defer server.Close()

	s := NewSchemaScraper(Options{Retry: testRetry()})
	_, err := s.Scrape(context.Background(), server.URL+"/yorkshire-puddings")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlockedHost)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	// Unreachable private addresses fail the same way as reachable ones.
	_, err = s.Scrape(context.Background(), "http://169.254.169.254/latest/meta-data/")
	assert.ErrorIs(t, err, ErrBlockedHost)
}

func TestSchemaScraper_InvalidURL(t *testing.T) {
	s := NewSchemaScraper(Options{})
	for _, raw := range []string{"", "ftp://example.com/recipe", "not a url", "https://"} {
		_, err := s.Scrape(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

type stubScraper struct {
	recipe *RawRecipe
	err    error
	calls  int
}

func (s *stubScraper) Scrape(ctx context.Context, url string) (*RawRecipe, error) {
	s.calls++
	return s.recipe, s.err
}

func TestScrapeResult(t *testing.T) {
	ok := Scrape(context.Background(), &stubScraper{recipe: &RawRecipe{Ingredients: []string{"egg"}}}, "https://example.com")
	assert.True(t, ok.Ok())
	assert.False(t, ok.Unsupported())
	assert.NotNil(t, ok.Recipe.Instructions)

	unsupported := Scrape(context.Background(), &stubScraper{err: ErrUnsupportedSite}, "https://example.com")
	assert.False(t, unsupported.Ok())
	assert.True(t, unsupported.Unsupported())

	failed := Scrape(context.Background(), &stubScraper{err: errors.New("connection reset")}, "https://example.com")
	assert.False(t, failed.Ok())
	assert.False(t, failed.Unsupported())
}
