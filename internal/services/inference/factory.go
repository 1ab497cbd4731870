package inference

import (
	"github.com/socialchef/recipe-gantt/internal/config"
)

// NewProvider builds the generator named by cfg.Model.Provider, wrapped in a
// FallbackProvider when fallback is enabled. modelPath is only used by the
// llama-cli backend.
func NewProvider(cfg *config.Config, modelPath string) Generator {
	primary := newSingle(cfg, cfg.Model.Provider, modelPath)

	if cfg.Model.FallbackEnabled && cfg.Model.FallbackProvider != cfg.Model.Provider {
		secondary := newSingle(cfg, cfg.Model.FallbackProvider, modelPath)
		return NewFallbackProvider(primary, cfg.Model.Provider, secondary, cfg.Model.FallbackProvider)
	}

	return primary
}

func newSingle(cfg *config.Config, provider, modelPath string) Generator {
	switch ProviderType(provider) {
	case ProviderLlamaServer:
		return NewLlamaServerProvider(cfg.Model.ServerURL, nil)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model.OpenAIModel, nil)
	default:
		return NewLlamaCLIProvider(cfg.Model.CLIPath, modelPath)
	}
}

// ParamsFromConfig maps the model section of the config onto Params.
func ParamsFromConfig(m config.ModelConfig) Params {
	params := DefaultParams()
	if m.MaxTokens > 0 {
		params.MaxTokens = m.MaxTokens
	}
	params.ContextSize = m.ContextSize
	if m.GPULayers != nil {
		params.GPULayers = *m.GPULayers
	}
	params.Verbose = m.Verbose
	return params
}

// NeedsModelFile reports whether any configured backend loads weights locally.
func NeedsModelFile(cfg *config.Config) bool {
	if cfg.Model.Provider == config.ProviderLlamaCLI {
		return true
	}
	return cfg.Model.FallbackEnabled && cfg.Model.FallbackProvider == config.ProviderLlamaCLI
}
