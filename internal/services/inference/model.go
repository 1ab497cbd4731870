package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/socialchef/recipe-gantt/internal/config"
	"github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/httpclient"
	"github.com/socialchef/recipe-gantt/internal/metrics"
	"github.com/socialchef/recipe-gantt/internal/utils"
)

const DefaultHubURL = "https://huggingface.co"

// ModelResolver finds the GGUF weights for the llama-cli backend, downloading
// them from the Hugging Face hub into a local cache on first use.
type ModelResolver struct {
	RepoID   string
	Filename string
	Path     string
	CacheDir string
	Token    string
	HubURL   string
	Client   *http.Client
	Retry    utils.RetryConfig
}

func NewModelResolver(cfg *config.Config) *ModelResolver {
	return &ModelResolver{
		RepoID:   cfg.Model.RepoID,
		Filename: cfg.Model.Filename,
		Path:     cfg.Model.Path,
		CacheDir: cfg.Model.CacheDir,
		Token:    cfg.HFToken,
		HubURL:   DefaultHubURL,
		Client:   httpclient.NewInstrumentedClient(0),
		Retry:    utils.DownloadRetryConfig(),
	}
}

// CachePath is where the downloaded weights live.
func (r *ModelResolver) CachePath() string {
	return filepath.Join(r.CacheDir, filepath.FromSlash(r.RepoID), r.Filename)
}

// Resolve returns a local path to the model weights. An explicit Path must
// already exist; otherwise the cached copy is used or fetched.
func (r *ModelResolver) Resolve(ctx context.Context) (string, error) {
	if r.Path != "" {
		if _, err := os.Stat(r.Path); err != nil {
			return "", errors.NewModelError("model file not found", "MODEL_NOT_FOUND",
				fmt.Errorf("%w: %s", ErrModelNotFound, r.Path))
		}
		return r.Path, nil
	}

	if r.RepoID == "" || r.Filename == "" {
		return "", errors.NewModelError("no model configured", "MODEL_NOT_CONFIGURED", ErrModelNotFound)
	}

	dest := r.CachePath()
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		slog.DebugContext(ctx, "Using cached model", "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.NewModelError("failed to create model cache", "MODEL_CACHE_ERROR", err)
	}

	slog.InfoContext(ctx, "Downloading model", "repo_id", r.RepoID, "filename", r.Filename, "dest", dest)
	start := time.Now()

	_, err := utils.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.download(ctx, dest)
	}, r.Retry)
	metrics.RecordExternalCall(ctx, "huggingface", time.Since(start).Seconds())
	if err != nil {
		return "", errors.NewModelError("failed to download model", "MODEL_DOWNLOAD_ERROR", err)
	}

	slog.InfoContext(ctx, "Model downloaded", "path", dest, "duration", time.Since(start).String())
	return dest, nil
}

func (r *ModelResolver) downloadURL() string {
	hub := strings.TrimRight(r.HubURL, "/")
	if hub == "" {
		hub = DefaultHubURL
	}
	return fmt.Sprintf("%s/%s/resolve/main/%s", hub, r.RepoID, r.Filename)
}

func (r *ModelResolver) download(ctx context.Context, dest string) error {
	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, "huggingface"), http.MethodGet, r.downloadURL(), nil)
	if err != nil {
		return err
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	client := r.Client
	if client == nil {
		client = httpclient.InstrumentedClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrModelNotFound, r.downloadURL())
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model download failed with status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
