package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/socialchef/recipe-gantt/internal/services/inference"
	"github.com/socialchef/recipe-gantt/internal/services/scraper"
	"github.com/socialchef/recipe-gantt/internal/utils"
)

const (
	testSecret = "integration-secret"
	testIssuer = "recipe-gantt"
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

const blogPage = `<!doctype html><html><body><p>Just a story about my holiday.</p></body></html>`

// pancakeTSV is what a well-behaved model answers for pancakePage.
const pancakeTSV = "Whisk the flour, eggs and milk.\tRest the batter.\tFry in a hot pan.\n" +
	"100g plain flour\tX\t\t\n" +
	"2 eggs\tX\t\t\n" +
	"300ml milk\tX\t\t\n"

// recipeSite serves /pancakes (JSON-LD recipe), /blog (no recipe) and 404 elsewhere.
func recipeSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/pancakes":
			w.Write([]byte(pancakePage))
		case "/blog":
			w.Write([]byte(blogPage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// llamaServer fakes the llama.cpp /completion endpoint and counts calls.
func llamaServer(t *testing.T, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Prompt   string `json:"prompt"`
			NPredict int    `json:"n_predict"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !strings.HasSuffix(req.Prompt, "### Response:") {
			http.Error(w, "bad prompt", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"content": content})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newScraper() scraper.Scraper {
	noRetry := utils.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	return scraper.NewSchemaScraper(scraper.Options{Timeout: 5 * time.Second, Retry: &noRetry, AllowPrivateNetworks: true})
}

func newGenerator(serverURL string) inference.Generator {
	return inference.NewLlamaServerProvider(serverURL, nil)
}

func createTestToken(subject string, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iss": testIssuer,
		"exp": exp.Unix(),
	})
	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}
