package scraper

import (
	"context"
	"errors"
)

// RawRecipe is what a scraper hands to the rest of the pipeline.
type RawRecipe struct {
	Title        string
	Host         string
	Ingredients  []string
	Instructions []string
}

// Validate normalises the recipe at the boundary. Empty lists are allowed.
func (r *RawRecipe) Validate() error {
	if r == nil {
		return errors.New("nil recipe")
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	return nil
}

// Scraper fetches a recipe page and returns its structured contents.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*RawRecipe, error)
}

// Result is either a recipe or the error that prevented one.
type Result struct {
	Recipe *RawRecipe
	Err    error
}

func (r Result) Ok() bool {
	return r.Err == nil && r.Recipe != nil
}

// Unsupported reports whether the page held no recipe this scraper understands.
func (r Result) Unsupported() bool {
	return errors.Is(r.Err, ErrUnsupportedSite)
}

// Scrape runs s and folds its return values into a Result.
func Scrape(ctx context.Context, s Scraper, url string) Result {
	recipe, err := s.Scrape(ctx, url)
	if err != nil {
		return Result{Err: err}
	}
	if err := recipe.Validate(); err != nil {
		return Result{Err: err}
	}
	return Result{Recipe: recipe}
}
