package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llama-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestLlamaCLIProvider_Args(t *testing.T) {
	p := NewLlamaCLIProvider("", "/models/recipe.gguf")

	args := p.Args("PROMPT", DefaultParams())
	assert.Equal(t, []string{
		"-m", "/models/recipe.gguf",
		"-p", "PROMPT",
		"-n", "4096",
		"-c", "0",
		"-ngl", "1",
		"-no-cnv",
		"--no-display-prompt",
		"--no-warmup",
		"-lv", "0",
	}, args)
	assert.NotContains(t, args, "--log-disable")

	verbose := DefaultParams()
	verbose.Verbose = true
	verboseArgs := p.Args("PROMPT", verbose)
	assert.Contains(t, verboseArgs, "--verbose")
	assert.NotContains(t, verboseArgs, "-lv")
	assert.Contains(t, verboseArgs, "-no-cnv")
	assert.Equal(t, "llama-cli", p.binary)
}

func TestLlamaCLIProvider_Generate(t *testing.T) {
	script := writeScript(t, `printf 'Boil water.\tDrain.\nwater\tX\t\n'
`)
	p := NewLlamaCLIProvider(script, "model.gguf")

	completion, err := p.Generate(context.Background(), "prompt", DefaultParams())
	require.NoError(t, err)

	text, err := completion.FirstText()
	require.NoError(t, err)
	assert.Equal(t, "Boil water.\tDrain.\nwater\tX\t\n", text)
}

func TestLlamaCLIProvider_PassesPrompt(t *testing.T) {
	script := writeScript(t, `while [ $# -gt 0 ]; do
  if [ "$1" = "-p" ]; then printf '%s' "$2"; fi
  shift
done
`)
	p := NewLlamaCLIProvider(script, "model.gguf")

	completion, err := p.Generate(context.Background(), "### Instruction:\nline two", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "### Instruction:\nline two", completion.Choices[0].Text)
}

func TestLlamaCLIProvider_EmptyStdin(t *testing.T) {
	// Reading stdin must hit EOF at once and see no bytes.
	script := writeScript(t, `input=$(cat)
if [ -n "$input" ]; then echo "unexpected stdin" >&2; exit 1; fi
printf 'Boil water.\twater\n'
`)
	p := NewLlamaCLIProvider(script, "model.gguf")

	completion, err := p.Generate(context.Background(), "prompt", DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "Boil water.\twater\n", completion.Choices[0].Text)
}

func TestLlamaCLIProvider_EmptyOutput(t *testing.T) {
	script := writeScript(t, `echo "main: exiting" >&2
printf '\n  \n'
`)
	p := NewLlamaCLIProvider(script, "model.gguf")

	_, err := p.Generate(context.Background(), "prompt", DefaultParams())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "EMPTY_COMPLETION", appErr.Code())
	assert.ErrorIs(t, err, ErrNoCompletion)
	assert.Contains(t, err.Error(), "main: exiting")
}

func TestLlamaCLIProvider_Failure(t *testing.T) {
	script := writeScript(t, `echo "loading..." >&2
echo "error: failed to load model" >&2
exit 3
`)
	p := NewLlamaCLIProvider(script, "missing.gguf")

	_, err := p.Generate(context.Background(), "prompt", DefaultParams())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "LLAMA_CLI_ERROR", appErr.Code())
	assert.Contains(t, err.Error(), "failed to load model")
	assert.NotContains(t, err.Error(), "loading...")
}

func TestLlamaCLIProvider_MissingBinary(t *testing.T) {
	p := NewLlamaCLIProvider(filepath.Join(t.TempDir(), "no-such-llama-cli"), "model.gguf")

	_, err := p.Generate(context.Background(), "prompt", DefaultParams())
	require.Error(t, err)
	assert.True(t, IsRetryableError(err))
}
