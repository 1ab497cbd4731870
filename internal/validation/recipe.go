package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/socialchef/recipe-gantt/internal/gantt"
	"github.com/socialchef/recipe-gantt/internal/services/recipe"
)

// Confidence represents certainty in the validation result
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result describes how likely a scraped recipe is to produce a useful chart.
// IsValid is never false for a recipe that was scraped at all: an empty list
// is reported in Missing, not rejected.
type Result struct {
	IsValid    bool       `json:"is_valid"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
	Missing    []string   `json:"missing"`
}

var methodKeywords = []string{
	"bake", "cook", "fry", "boil", "grill", "roast", "saute", "simmer", "steam",
	"mix", "whisk", "stir", "blend", "chop", "dice", "slice", "preheat", "heat",
	"add", "pour", "serve", "combine", "place", "remove", "season",
}

var placeholderPattern = regexp.MustCompile(`(?i)^(n/?a|unknown|not specified|tbd|xxx+|\[.*\]|<.*>)$`)

// DetectPlaceholders reports text that is empty or an obvious stand-in.
func DetectPlaceholders(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || placeholderPattern.MatchString(trimmed)
}

// QuickValidate is a cheap heuristic run before the model is called.
func QuickValidate(n recipe.Normalized) Result {
	missing := []string{}
	if len(n.Ingredients) == 0 {
		missing = append(missing, "ingredients")
	}
	if len(n.Steps) == 0 {
		missing = append(missing, "steps")
	}

	if len(missing) > 0 {
		return Result{
			IsValid:    true,
			Confidence: ConfidenceLow,
			Reason:     fmt.Sprintf("Recipe has no %s; the chart will be empty", strings.Join(missing, " or ")),
			Missing:    missing,
		}
	}

	placeholders := 0
	for _, ingredient := range n.Ingredients {
		if DetectPlaceholders(ingredient) {
			placeholders++
		}
	}
	if placeholders > 0 {
		return Result{
			IsValid:    true,
			Confidence: ConfidenceLow,
			Reason:     fmt.Sprintf("%d of %d ingredients look like placeholders", placeholders, len(n.Ingredients)),
			Missing:    []string{"ingredient text"},
		}
	}

	method := strings.ToLower(strings.Join(n.Steps, " "))
	for _, kw := range methodKeywords {
		if strings.Contains(method, kw) {
			return Result{
				IsValid:    true,
				Confidence: ConfidenceHigh,
				Reason:     "Recipe passed quick validation",
				Missing:    []string{},
			}
		}
	}

	return Result{
		IsValid:    true,
		Confidence: ConfidenceMedium,
		Reason:     "Method has no common cooking verbs",
		Missing:    []string{"cooking verbs"},
	}
}

// CheckTable compares a generated chart with the recipe it was generated
// from and returns human-readable warnings. The model is free-text, so
// nothing here is treated as an error.
func CheckTable(n recipe.Normalized, t *gantt.Table) []string {
	warnings := []string{}
	if t == nil {
		return warnings
	}

	if len(t.Steps) != len(n.Steps) {
		warnings = append(warnings, fmt.Sprintf("Chart has %d steps, recipe has %d", len(t.Steps), len(n.Steps)))
	}
	if len(t.Rows) != len(n.Ingredients) {
		warnings = append(warnings, fmt.Sprintf("Chart has %d ingredients, recipe has %d", len(t.Rows), len(n.Ingredients)))
	}

	charted := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		charted[row.Ingredient] = true
		if len(t.Uses(row.Ingredient)) == 0 {
			warnings = append(warnings, fmt.Sprintf("Ingredient %q is not used in any step", row.Ingredient))
		}
	}
	for _, ingredient := range n.Ingredients {
		if !charted[ingredient] {
			warnings = append(warnings, fmt.Sprintf("Ingredient %q is missing from the chart", ingredient))
		}
	}

	return warnings
}
