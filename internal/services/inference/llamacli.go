package inference

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/metrics"
)

// LlamaCLIProvider runs the llama.cpp command line binary once per prompt.
type LlamaCLIProvider struct {
	binary    string
	modelPath string
}

func NewLlamaCLIProvider(binary, modelPath string) *LlamaCLIProvider {
	if binary == "" {
		binary = "llama-cli"
	}
	return &LlamaCLIProvider{binary: binary, modelPath: modelPath}
}

// Args builds the command line for llama.cpp builds from b3700 on (the common
// logging rewrite that added -lv). -no-cnv keeps builds that default to chat
// mode from treating the prompt as a system message and waiting on stdin.
// Generated tokens go through the main logger at verbosity 0, so logging is
// turned down with -lv rather than switched off with --log-disable, which
// would empty stdout too.
func (p *LlamaCLIProvider) Args(prompt string, params Params) []string {
	args := []string{
		"-m", p.modelPath,
		"-p", prompt,
		"-n", strconv.Itoa(params.MaxTokens),
		"-c", strconv.Itoa(params.ContextSize),
		"-ngl", strconv.Itoa(params.GPULayers),
		"-no-cnv",
		"--no-display-prompt",
		"--no-warmup",
	}
	if params.Verbose {
		args = append(args, "--verbose")
	} else {
		args = append(args, "-lv", "0")
	}
	return args
}

func (p *LlamaCLIProvider) Generate(ctx context.Context, prompt string, params Params) (*Completion, error) {
	startTime := time.Now()
	defer func() {
		metrics.RecordGeneration(ctx, string(ProviderLlamaCLI), time.Since(startTime).Seconds())
	}()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, p.Args(prompt, params)...)
	cmd.Stdin = strings.NewReader("")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.DebugContext(ctx, "Running llama-cli", "binary", p.binary, "model", p.modelPath, "max_tokens", params.MaxTokens)

	if err := cmd.Run(); err != nil {
		return nil, errors.NewGenerationError(
			"llama-cli failed",
			"LLAMA_CLI_ERROR",
			fmt.Errorf("%w: %s", err, lastLine(stderr.String())),
		)
	}

	if strings.TrimSpace(stdout.String()) == "" {
		return nil, errors.NewGenerationError(
			"llama-cli produced no output",
			"EMPTY_COMPLETION",
			fmt.Errorf("%w: %s", ErrNoCompletion, lastLine(stderr.String())),
		)
	}

	return &Completion{Choices: []Choice{{Text: stdout.String()}}}, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
