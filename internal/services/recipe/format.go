package recipe

import (
	"strconv"
	"strings"
)

// Format renders the canonical text block the model was trained on:
// an Ingredients section followed by a numbered Method section.
func Format(ingredients, steps []string) string {
	var b strings.Builder
	b.WriteString("Ingredients\n\n")
	for _, ingredient := range ingredients {
		b.WriteString(ingredient)
		b.WriteString("\n")
	}
	b.WriteString("\nMethod\n\n")
	for i, step := range steps {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(step)
		b.WriteString("\n")
	}
	return b.String()
}

func (n Normalized) Format() string {
	return Format(n.Ingredients, n.Steps)
}
