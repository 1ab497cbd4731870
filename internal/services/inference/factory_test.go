package inference

import (
	"testing"

	"github.com/socialchef/recipe-gantt/internal/config"
)

func testConfig(provider string) *config.Config {
	cfg := &config.Config{OpenAIKey: "test-openai-key", OpenAIBaseURL: "https://api.openai.com/v1"}
	cfg.Model.Provider = provider
	cfg.SetModelDefaults()
	return cfg
}

func TestFactory_LlamaCLI(t *testing.T) {
	provider := NewProvider(testConfig("llamacpp-cli"), "/models/recipe-gantt.gguf")

	cli, ok := provider.(*LlamaCLIProvider)
	if !ok {
		t.Fatalf("Expected LlamaCLIProvider, got %T", provider)
	}
	if cli.modelPath != "/models/recipe-gantt.gguf" {
		t.Errorf("Expected model path to be passed through, got %q", cli.modelPath)
	}
}

func TestFactory_LlamaServer(t *testing.T) {
	provider := NewProvider(testConfig("llamacpp-server"), "")

	server, ok := provider.(*LlamaServerProvider)
	if !ok {
		t.Fatalf("Expected LlamaServerProvider, got %T", provider)
	}
	if server.baseURL != "http://localhost:8081" {
		t.Errorf("Expected default server URL, got %q", server.baseURL)
	}
}

func TestFactory_OpenAI(t *testing.T) {
	provider := NewProvider(testConfig("openai"), "")

	if _, ok := provider.(*OpenAIProvider); !ok {
		t.Errorf("Expected OpenAIProvider, got %T", provider)
	}
}

func TestFactory_Default(t *testing.T) {
	provider := NewProvider(&config.Config{}, "model.gguf")

	if _, ok := provider.(*LlamaCLIProvider); !ok {
		t.Errorf("Expected LlamaCLIProvider as default, got %T", provider)
	}
}

func TestFactory_WithFallback(t *testing.T) {
	cfg := testConfig("llamacpp-cli")
	cfg.Model.FallbackEnabled = true
	cfg.Model.FallbackProvider = "openai"

	provider := NewProvider(cfg, "model.gguf")

	fallback, ok := provider.(*FallbackProvider)
	if !ok {
		t.Fatalf("Expected FallbackProvider, got %T", provider)
	}
	if _, ok := fallback.primary.(*LlamaCLIProvider); !ok {
		t.Errorf("Expected LlamaCLIProvider as primary, got %T", fallback.primary)
	}
	if _, ok := fallback.secondary.(*OpenAIProvider); !ok {
		t.Errorf("Expected OpenAIProvider as secondary, got %T", fallback.secondary)
	}
}

func TestFactory_FallbackToSelfIsIgnored(t *testing.T) {
	cfg := testConfig("llamacpp-server")
	cfg.Model.FallbackEnabled = true
	cfg.Model.FallbackProvider = "llamacpp-server"

	if _, ok := NewProvider(cfg, "").(*LlamaServerProvider); !ok {
		t.Errorf("Expected a single provider when fallback names the primary")
	}
}

func TestParamsFromConfig(t *testing.T) {
	layers := 0
	params := ParamsFromConfig(config.ModelConfig{MaxTokens: 512, ContextSize: 2048, GPULayers: &layers, Verbose: true})

	want := Params{MaxTokens: 512, ContextSize: 2048, GPULayers: 0, Verbose: true}
	if params != want {
		t.Errorf("ParamsFromConfig() = %+v, want %+v", params, want)
	}

	if got := ParamsFromConfig(config.ModelConfig{}); got != DefaultParams() {
		t.Errorf("ParamsFromConfig(empty) = %+v, want defaults", got)
	}
}

func TestNeedsModelFile(t *testing.T) {
	if !NeedsModelFile(testConfig("llamacpp-cli")) {
		t.Error("llama-cli needs a model file")
	}
	if NeedsModelFile(testConfig("llamacpp-server")) {
		t.Error("llama-server does not need a local model file")
	}

	cfg := testConfig("openai")
	cfg.Model.FallbackEnabled = true
	cfg.Model.FallbackProvider = "llamacpp-cli"
	if !NeedsModelFile(cfg) {
		t.Error("llama-cli fallback needs a model file")
	}
}
