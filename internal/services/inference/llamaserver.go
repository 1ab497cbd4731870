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

// LlamaServerProvider talks to a running llama.cpp server.
type LlamaServerProvider struct {
	baseURL string
	client  *http.Client
}

func NewLlamaServerProvider(baseURL string, client *http.Client) *LlamaServerProvider {
	if client == nil {
		client = httpclient.InstrumentedClient
	}
	return &LlamaServerProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type completionRequest struct {
	Prompt   string `json:"prompt"`
	NPredict int    `json:"n_predict"`
	Stream   bool   `json:"stream"`
}

type completionResponse struct {
	Content string `json:"content"`
}

func (p *LlamaServerProvider) Generate(ctx context.Context, prompt string, params Params) (*Completion, error) {
	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime).Seconds()
		metrics.RecordGeneration(ctx, string(ProviderLlamaServer), duration)
		metrics.RecordExternalCall(ctx, string(ProviderLlamaServer), duration)
	}()

	body, err := json.Marshal(completionRequest{Prompt: prompt, NPredict: params.MaxTokens})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, "llama-server"), http.MethodPost, p.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
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
		return nil, fmt.Errorf("llama-server error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode llama-server response: %w", err)
	}

	return &Completion{Choices: []Choice{{Text: out.Content}}}, nil
}
