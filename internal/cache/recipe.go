package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRecipe is a scraped recipe page as stored in Redis.
type CachedRecipe struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Host         string    `json:"host"`
	Ingredients  []string  `json:"ingredients"`
	Instructions []string  `json:"instructions"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// RecipeCache provides Redis-backed caching for scraped recipe pages.
// Cache failures are logged and treated as misses.
type RecipeCache struct {
	client *redis.Client
	prefix string
}

// NewRecipeCache creates a new recipe cache with the given Redis client.
func NewRecipeCache(client *redis.Client) *RecipeCache {
	return &RecipeCache{
		client: client,
		prefix: "recipe-gantt:recipe:",
	}
}

// Key returns the Redis key for a recipe URL.
func (c *RecipeCache) Key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%s%x", c.prefix, hash)
}

// Get retrieves a cached recipe by URL. A miss returns (nil, nil).
func (c *RecipeCache) Get(ctx context.Context, url string) (*CachedRecipe, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, c.Key(url)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		slog.Warn("Redis cache get failed", "error", err)
		return nil, nil
	}

	var recipe CachedRecipe
	if err := json.Unmarshal([]byte(data), &recipe); err != nil {
		slog.Warn("Failed to unmarshal cached recipe", "error", err)
		return nil, nil
	}

	return &recipe, nil
}

// Set stores a recipe in the cache with the given TTL.
func (c *RecipeCache) Set(ctx context.Context, url string, recipe *CachedRecipe, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(recipe)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, c.Key(url), data, ttl).Err(); err != nil {
		slog.Warn("Redis cache set failed", "error", err)
	}

	return nil
}

// Delete removes a recipe from the cache.
func (c *RecipeCache) Delete(ctx context.Context, url string) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, c.Key(url)).Err(); err != nil {
		slog.Warn("Redis cache delete failed", "error", err)
	}

	return nil
}
