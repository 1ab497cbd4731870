package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/socialchef/recipe-gantt/internal/httpclient"
	"github.com/socialchef/recipe-gantt/internal/metrics"
)

// OpenAIProvider uses the legacy text completions endpoint, which any
// OpenAI-compatible server (vLLM, llama.cpp, LM Studio) also exposes.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(apiKey, baseURL, model string, client *http.Client) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if client == nil {
		client = httpclient.InstrumentedClient
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
	}
}

type openAIRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
	Echo      bool   `json:"echo"`
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, params Params) (*Completion, error) {
	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime).Seconds()
		metrics.RecordGeneration(ctx, string(ProviderOpenAI), duration)
		metrics.RecordExternalCall(ctx, string(ProviderOpenAI), duration)
	}()

	body, err := json.Marshal(openAIRequest{
		Model:     p.model,
		Prompt:    prompt,
		MaxTokens: params.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, "OpenAI"), http.MethodPost, p.baseURL+"/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var completion Completion
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode OpenAI response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrNoCompletion
	}

	return &completion, nil
}
