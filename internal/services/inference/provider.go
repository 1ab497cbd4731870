package inference

import (
	"context"
	"errors"
)

// ProviderType names a text-generation backend.
type ProviderType string

const (
	ProviderLlamaCLI    ProviderType = "llamacpp-cli"
	ProviderLlamaServer ProviderType = "llamacpp-server"
	ProviderOpenAI      ProviderType = "openai"
)

var (
	ErrNoCompletion  = errors.New("model returned no completion")
	ErrModelNotFound = errors.New("model file not found")
)

// Params are the generation settings passed to every backend.
type Params struct {
	MaxTokens   int
	ContextSize int // 0 lets the runtime use the model's trained context
	GPULayers   int
	Verbose     bool
}

func DefaultParams() Params {
	return Params{
		MaxTokens:   4096,
		ContextSize: 0,
		GPULayers:   1,
	}
}

type Choice struct {
	Text string `json:"text"`
}

// Completion is a backend's answer to a single prompt.
type Completion struct {
	Choices []Choice `json:"choices"`
}

// FirstText returns the text of the first choice.
func (c *Completion) FirstText() (string, error) {
	if c == nil || len(c.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return c.Choices[0].Text, nil
}

// Generator runs one inference pass over a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (*Completion, error)
}
