package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"github.com/socialchef/recipe-gantt/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipeURL_FromArgs(t *testing.T) {
	var prompt bytes.Buffer
	url, err := recipeURL([]string{" https://example.com/pasta "}, strings.NewReader(""), &prompt)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pasta", url)
	assert.Empty(t, prompt.String())
}

func TestRecipeURL_Prompted(t *testing.T) {
	var prompt bytes.Buffer
	url, err := recipeURL(nil, strings.NewReader("https://example.com/pasta\n"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pasta", url)
	assert.Equal(t, "Please enter the recipe URL: ", prompt.String())
}

func TestRecipeURL_NoNewline(t *testing.T) {
	url, err := recipeURL(nil, strings.NewReader("https://example.com/pasta"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pasta", url)
}

func TestRecipeURL_Empty(t *testing.T) {
	_, err := recipeURL(nil, strings.NewReader("\n"), &bytes.Buffer{})
	assert.Error(t, err)

	_, err = recipeURL([]string{"a", "b"}, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func parseFlags(t *testing.T, args ...string) (*flag.FlagSet, options) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.output, "output", "", "")
	fs.BoolVar(&opts.display, "display", true, "")
	fs.StringVar(&opts.modelPath, "model", "", "")
	fs.StringVar(&opts.provider, "provider", "", "")
	fs.IntVar(&opts.maxTokens, "max-tokens", 0, "")
	require.NoError(t, fs.Parse(args))
	return fs, opts
}

func defaultConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetOutputDefaults()
	cfg.SetModelDefaults()
	return cfg
}

func TestApplyFlags_OnlyExplicitFlagsOverride(t *testing.T) {
	cfg := defaultConfig()
	fs, opts := parseFlags(t, "-output", "s3://charts/pasta.tsv", "-display=false", "-max-tokens", "512")

	require.NoError(t, applyFlags(fs, opts, cfg))

	assert.Equal(t, "s3://charts/pasta.tsv", cfg.Output.Path)
	assert.False(t, cfg.DisplayEnabled())
	assert.Equal(t, 512, cfg.Model.MaxTokens)
	assert.Equal(t, config.ProviderLlamaCLI, cfg.Model.Provider)
	assert.Empty(t, cfg.Model.Path)
}

func TestApplyFlags_Validates(t *testing.T) {
	cfg := defaultConfig()
	fs, opts := parseFlags(t, "-provider", "ollama")
	assert.Error(t, applyFlags(fs, opts, cfg))

	cfg = defaultConfig()
	fs, opts = parseFlags(t, "-max-tokens", "-5")
	assert.Error(t, applyFlags(fs, opts, cfg))
}
