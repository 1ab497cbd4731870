package scraper

import (
	"time"

	"github.com/socialchef/recipe-gantt/internal/config"
)

// NewFromConfig builds the schema.org scraper described by cfg.Scraper,
// fronted by store when one is given.
func NewFromConfig(cfg config.ScraperConfig, store RecipeStore) Scraper {
	var s Scraper = NewSchemaScraper(Options{
		UserAgent: cfg.UserAgent,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,

		AllowPrivateNetworks: cfg.AllowPrivateNetworks,
	})
	if store == nil {
		return s
	}
	return NewCachedScraper(s, store, time.Duration(cfg.CacheTTLMinutes)*time.Minute)
}
