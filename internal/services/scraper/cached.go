package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/socialchef/recipe-gantt/internal/cache"
)

// RecipeStore is the subset of cache.RecipeCache used by CachedScraper.
type RecipeStore interface {
	Get(ctx context.Context, url string) (*cache.CachedRecipe, error)
	Set(ctx context.Context, url string, recipe *cache.CachedRecipe, ttl time.Duration) error
}

// CachedScraper serves recently scraped pages from a RecipeStore.
type CachedScraper struct {
	next  Scraper
	store RecipeStore
	ttl   time.Duration
}

func NewCachedScraper(next Scraper, store RecipeStore, ttl time.Duration) *CachedScraper {
	return &CachedScraper{next: next, store: store, ttl: ttl}
}

func (s *CachedScraper) Scrape(ctx context.Context, url string) (*RawRecipe, error) {
	if s.store != nil {
		if cached, err := s.store.Get(ctx, url); err == nil && cached != nil {
			slog.DebugContext(ctx, "Recipe cache hit", "url", url)
			return &RawRecipe{
				Title:        cached.Title,
				Host:         cached.Host,
				Ingredients:  cached.Ingredients,
				Instructions: cached.Instructions,
			}, nil
		}
	}

	recipe, err := s.next.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		entry := &cache.CachedRecipe{
			URL:          url,
			Title:        recipe.Title,
			Host:         recipe.Host,
			Ingredients:  recipe.Ingredients,
			Instructions: recipe.Instructions,
			FetchedAt:    time.Now().UTC(),
		}
		if err := s.store.Set(ctx, url, entry, s.ttl); err != nil {
			slog.WarnContext(ctx, "Failed to cache recipe", "url", url, "error", err)
		}
	}

	return recipe, nil
}
