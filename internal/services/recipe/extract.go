package recipe

import (
	"strings"

	"github.com/socialchef/recipe-gantt/internal/services/scraper"
)

// Normalized is a recipe reduced to the two lists the model is prompted with.
type Normalized struct {
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
}

// Extract copies ingredients verbatim and normalises the method into steps.
//
// When the page gave the whole method as a single block, it is split on
// periods. That recovery is lossy: abbreviations such as "e.g." are split too.
func Extract(raw *scraper.RawRecipe) Normalized {
	if raw == nil {
		return Normalized{Ingredients: []string{}, Steps: []string{}}
	}

	ingredients := make([]string, len(raw.Ingredients))
	copy(ingredients, raw.Ingredients)

	var steps []string
	if len(raw.Instructions) == 1 {
		steps = SplitSteps(raw.Instructions[0])
	} else {
		steps = make([]string, len(raw.Instructions))
		copy(steps, raw.Instructions)
	}

	return Normalized{Ingredients: ingredients, Steps: steps}
}

// SplitSteps breaks a block of text into sentences on '.', trimming each and
// ending it with a period. Fragments that are empty after trimming are dropped.
func SplitSteps(block string) []string {
	steps := []string{}
	for _, fragment := range strings.Split(block, ".") {
		step := strings.TrimSpace(fragment) + "."
		if step == "." {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}
