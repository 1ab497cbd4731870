package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ProviderLlamaCLI    = "llamacpp-cli"
	ProviderLlamaServer = "llamacpp-server"
	ProviderOpenAI      = "openai"
)

// DefaultLlamaServerURL sits one port above the API server's default so a
// local fallback never points the server back at itself.
const DefaultLlamaServerURL = "http://localhost:8081"

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	RedisURL string

	OpenAIKey     string
	OpenAIBaseURL string
	HFToken       string
	AWSRegion     string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	// Bearer auth for /api routes; empty secret disables it.
	APIJWTSecret string
	APIJWTIssuer string

	WorkerConcurrency int
	JobOutputPrefix   string

	Output  OutputConfig
	Model   ModelConfig
	Scraper ScraperConfig
}

type OutputConfig struct {
	Path    string `yaml:"path"`
	Display *bool  `yaml:"display"`
}

type ModelConfig struct {
	Provider         string `yaml:"provider"`
	FallbackEnabled  bool   `yaml:"fallback_enabled"`
	FallbackProvider string `yaml:"fallback_provider"`

	RepoID   string `yaml:"repo_id"`
	Filename string `yaml:"filename"`
	Path     string `yaml:"path"`
	CacheDir string `yaml:"cache_dir"`

	ServerURL   string `yaml:"server_url"`
	CLIPath     string `yaml:"cli_path"`
	OpenAIModel string `yaml:"openai_model"`

	MaxTokens   int  `yaml:"max_tokens"`
	ContextSize int  `yaml:"context_size"`
	GPULayers   *int `yaml:"gpu_layers"`
	Verbose     bool `yaml:"verbose"`
}

type ScraperConfig struct {
	UserAgent       string `yaml:"user_agent"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	// AllowPrivateNetworks permits recipe URLs on loopback, private and
	// link-local hosts. The CLI turns it on; the server and worker keep it off
	// unless configured.
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

// Load reads the environment and ./config.yaml.
func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

// LoadFrom reads the environment and the YAML file at path, if it exists.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:            os.Getenv("OPENAI_BASE_URL"),
		HFToken:                  os.Getenv("HF_TOKEN"),
		AWSRegion:                os.Getenv("AWS_REGION"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
		APIJWTSecret:             os.Getenv("API_JWT_SECRET"),
		APIJWTIssuer:             os.Getenv("API_JWT_ISSUER"),
		JobOutputPrefix:          os.Getenv("JOB_OUTPUT_PREFIX"),
		Model: ModelConfig{
			Provider:  os.Getenv("RECIPE_GANTT_PROVIDER"),
			Path:      os.Getenv("RECIPE_GANTT_MODEL_PATH"),
			CacheDir:  os.Getenv("RECIPE_GANTT_CACHE_DIR"),
			ServerURL: os.Getenv("LLAMA_SERVER_URL"),
			CLIPath:   os.Getenv("LLAMA_CLI_PATH"),
		},
	}

	if v := os.Getenv("RECIPE_GANTT_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RECIPE_GANTT_MAX_TOKENS must be an integer: %w", err)
		}
		cfg.Model.MaxTokens = n
	}

	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("WORKER_CONCURRENCY must be an integer: %w", err)
		}
		cfg.WorkerConcurrency = n
	}

	if v := os.Getenv("SCRAPER_ALLOW_PRIVATE_NETWORKS"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SCRAPER_ALLOW_PRIVATE_NETWORKS must be a boolean: %w", err)
		}
		cfg.Scraper.AllowPrivateNetworks = allow
	}

	if err := cfg.LoadFromYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "recipe-gantt"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.APIJWTIssuer == "" {
		cfg.APIJWTIssuer = "recipe-gantt"
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.OpenAIBaseURL == "" {
		cfg.OpenAIBaseURL = "https://api.openai.com/v1"
	}

	cfg.SetOutputDefaults()
	cfg.SetModelDefaults()
	cfg.SetScraperDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Output  OutputConfig  `yaml:"output"`
		Model   ModelConfig   `yaml:"model"`
		Scraper ScraperConfig `yaml:"scraper"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlConfig.Output.Path != "" {
		c.Output.Path = yamlConfig.Output.Path
	}
	if yamlConfig.Output.Display != nil {
		c.Output.Display = yamlConfig.Output.Display
	}

	m := yamlConfig.Model
	if m.Provider != "" {
		c.Model.Provider = m.Provider
	}
	if m.FallbackEnabled {
		c.Model.FallbackEnabled = true
	}
	if m.FallbackProvider != "" {
		c.Model.FallbackProvider = m.FallbackProvider
	}
	if m.RepoID != "" {
		c.Model.RepoID = m.RepoID
	}
	if m.Filename != "" {
		c.Model.Filename = m.Filename
	}
	if m.Path != "" {
		c.Model.Path = m.Path
	}
	if m.CacheDir != "" {
		c.Model.CacheDir = m.CacheDir
	}
	if m.ServerURL != "" {
		c.Model.ServerURL = m.ServerURL
	}
	if m.CLIPath != "" {
		c.Model.CLIPath = m.CLIPath
	}
	if m.OpenAIModel != "" {
		c.Model.OpenAIModel = m.OpenAIModel
	}
	if m.MaxTokens != 0 {
		c.Model.MaxTokens = m.MaxTokens
	}
	if m.ContextSize != 0 {
		c.Model.ContextSize = m.ContextSize
	}
	if m.GPULayers != nil {
		c.Model.GPULayers = m.GPULayers
	}
	if m.Verbose {
		c.Model.Verbose = true
	}

	s := yamlConfig.Scraper
	if s.UserAgent != "" {
		c.Scraper.UserAgent = s.UserAgent
	}
	if s.TimeoutSeconds != 0 {
		c.Scraper.TimeoutSeconds = s.TimeoutSeconds
	}
	if s.CacheTTLMinutes != 0 {
		c.Scraper.CacheTTLMinutes = s.CacheTTLMinutes
	}
	if s.AllowPrivateNetworks {
		c.Scraper.AllowPrivateNetworks = true
	}

	return nil
}

func (c *Config) SetOutputDefaults() {
	if c.Output.Path == "" {
		c.Output.Path = "recipe-gantt.tsv"
	}
	if c.Output.Display == nil {
		display := true
		c.Output.Display = &display
	}
}

func (c *Config) SetModelDefaults() {
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderLlamaCLI
	}
	if c.Model.FallbackProvider == "" {
		c.Model.FallbackProvider = ProviderLlamaServer
	}
	if c.Model.RepoID == "" {
		c.Model.RepoID = "pocasrocas/recipe-gantt-v0.1"
	}
	if c.Model.Filename == "" {
		c.Model.Filename = "recipe-gantt-v0.1-q4_0.gguf"
	}
	if c.Model.CacheDir == "" {
		c.Model.CacheDir = defaultCacheDir()
	}
	if c.Model.ServerURL == "" {
		c.Model.ServerURL = DefaultLlamaServerURL
	}
	if c.Model.CLIPath == "" {
		c.Model.CLIPath = "llama-cli"
	}
	if c.Model.OpenAIModel == "" {
		c.Model.OpenAIModel = "recipe-gantt-v0.1"
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4096
	}
	if c.Model.GPULayers == nil {
		layers := 1 // offload to Metal on Apple silicon
		c.Model.GPULayers = &layers
	}
}

func (c *Config) SetScraperDefaults() {
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = "Mozilla/5.0 (compatible; recipe-gantt/0.1; +https://github.com/jbremz/recipe-gantt)"
	}
	if c.Scraper.TimeoutSeconds == 0 {
		c.Scraper.TimeoutSeconds = 60
	}
	if c.Scraper.CacheTTLMinutes == 0 {
		c.Scraper.CacheTTLMinutes = 24 * 60
	}
}

// DisplayEnabled reports whether the parsed table should be rendered after generation.
func (c *Config) DisplayEnabled() bool {
	return c.Output.Display == nil || *c.Output.Display
}

func (c *Config) Validate() error {
	for _, p := range []string{c.Model.Provider, c.Model.FallbackProvider} {
		switch p {
		case ProviderLlamaCLI, ProviderLlamaServer, ProviderOpenAI:
		default:
			return fmt.Errorf("unknown model provider %q", p)
		}
	}
	usesOpenAI := c.Model.Provider == ProviderOpenAI ||
		(c.Model.FallbackEnabled && c.Model.FallbackProvider == ProviderOpenAI)
	if usesOpenAI && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model.max_tokens must be positive, got %d", c.Model.MaxTokens)
	}
	if c.Model.ContextSize < 0 {
		return fmt.Errorf("model.context_size must not be negative, got %d", c.Model.ContextSize)
	}
	if c.Model.GPULayers != nil && *c.Model.GPULayers < 0 {
		return fmt.Errorf("model.gpu_layers must not be negative, got %d", *c.Model.GPULayers)
	}
	return nil
}

func defaultCacheDir() string {
	if hf := os.Getenv("HF_HOME"); hf != "" {
		return filepath.Join(hf, "recipe-gantt")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "recipe-gantt")
	}
	return filepath.Join(os.TempDir(), "recipe-gantt")
}
