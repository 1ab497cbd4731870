package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/socialchef/recipe-gantt/internal/httpclient"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/utils"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxPageSize caps how much of a recipe page is read.
const maxPageSize = 10 << 20

type Options struct {
	HTTPClient *http.Client
	UserAgent  string
	Timeout    time.Duration
	Retry      *utils.RetryConfig
	// AllowPrivateNetworks lets the default client fetch loopback, private and
	// link-local hosts. Leave it off wherever URLs come from other people.
	AllowPrivateNetworks bool
}

// SchemaScraper reads the schema.org Recipe embedded in a page, either as
// JSON-LD or as microdata.
type SchemaScraper struct {
	httpClient *http.Client
	retry      utils.RetryConfig
}

func NewSchemaScraper(opts Options) *SchemaScraper {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.HTTPClient
	switch {
	case client != nil:
	case opts.AllowPrivateNetworks:
		client = httpclient.NewBrowserClient(opts.Timeout, opts.UserAgent)
	default:
		client = httpclient.NewGuardedBrowserClient(opts.Timeout, opts.UserAgent)
	}
	retry := utils.PageFetchRetryConfig(opts.Timeout)
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	return &SchemaScraper{httpClient: client, retry: retry}
}

func (s *SchemaScraper) Scrape(ctx context.Context, pageURL string) (*RawRecipe, error) {
	u, err := parseRecipeURL(pageURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := utils.WithRetry(httpclient.WithProvider(ctx, "recipe-page"), func(ctx context.Context) ([]byte, error) {
		return s.fetch(ctx, u.String())
	}, s.retry)
	metrics.RecordExternalCall(ctx, "recipe-page", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	recipe, err := ParseHTML(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	recipe.Host = u.Hostname()

	slog.DebugContext(ctx, "Scraped recipe",
		"host", recipe.Host,
		"title", recipe.Title,
		"ingredients", len(recipe.Ingredients),
		"instructions", len(recipe.Instructions))

	return recipe, nil
}

func (s *SchemaScraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if errors.Is(err, httpclient.ErrBlockedAddress) {
		return nil, fmt.Errorf("%w: %s", ErrBlockedHost, req.URL.Hostname())
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPageNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("recipe page returned status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
}

func parseRecipeURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// ParseHTML extracts a recipe from an HTML document. JSON-LD is preferred;
// microdata is the fallback. ErrUnsupportedSite is returned when neither is present.
func ParseHTML(r io.Reader) (*RawRecipe, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe page: %w", err)
	}

	var recipe *RawRecipe
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return true
		}
		if node := findRecipeNode(data); node != nil {
			recipe = recipeFromNode(node)
			return false
		}
		return true
	})

	if recipe == nil {
		recipe = recipeFromMicrodata(doc)
	}
	if recipe == nil {
		return nil, ErrUnsupportedSite
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

func findRecipeNode(v any) map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if found := findRecipeNode(item); found != nil {
				return found
			}
		}
	case map[string]any:
		if isType(node["@type"], "Recipe") {
			return node
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if child, ok := node[key]; ok {
				if found := findRecipeNode(child); found != nil {
					return found
				}
			}
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func recipeFromNode(node map[string]any) *RawRecipe {
	recipe := &RawRecipe{}
	if name, ok := node["name"].(string); ok {
		recipe.Title = cleanText(name)
	}

	ingredients, ok := node["recipeIngredient"]
	if !ok {
		ingredients = node["ingredients"]
	}
	recipe.Ingredients = stringList(ingredients)
	recipe.Instructions = instructionList(node["recipeInstructions"])

	return recipe
}

func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		if s := cleanText(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			out = append(out, stringList(item)...)
		}
	}
	return out
}

// instructionList flattens recipeInstructions in document order. A plain
// string is one block per line, the way the page author broke it.
func instructionList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, line := range strings.Split(html.UnescapeString(t), "\n") {
			if s := cleanText(line); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range t {
			out = append(out, instructionList(item)...)
		}
	case map[string]any:
		if elems, ok := t["itemListElement"]; ok {
			return instructionList(elems)
		}
		text, _ := t["text"].(string)
		if text == "" {
			text, _ = t["name"].(string)
		}
		if s := cleanText(text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func recipeFromMicrodata(doc *goquery.Document) *RawRecipe {
	ingredients := doc.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`)
	instructions := doc.Find(`[itemprop="recipeInstructions"]`)
	if ingredients.Length() == 0 && instructions.Length() == 0 {
		return nil
	}

	recipe := &RawRecipe{
		Title: cleanText(doc.Find(`[itemtype*="schema.org/Recipe"] [itemprop="name"]`).First().Text()),
	}

	ingredients.Each(func(_ int, sel *goquery.Selection) {
		if s := cleanText(sel.Text()); s != "" {
			recipe.Ingredients = append(recipe.Ingredients, s)
		}
	})

	instructions.Each(func(_ int, sel *goquery.Selection) {
		items := sel.Find("li")
		if items.Length() == 0 {
			recipe.Instructions = append(recipe.Instructions, instructionList(sel.Text())...)
			return
		}
		items.Each(func(_ int, li *goquery.Selection) {
			if s := cleanText(li.Text()); s != "" {
				recipe.Instructions = append(recipe.Instructions, s)
			}
		})
	})

	return recipe
}

// cleanText unescapes entities, drops any markup and collapses whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	if strings.Contains(s, "<") {
		if frag, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = frag.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
