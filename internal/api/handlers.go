package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/gantt"
	"github.com/socialchef/recipe-gantt/internal/middleware"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
	"github.com/socialchef/recipe-gantt/internal/services/recipe"
	"github.com/socialchef/recipe-gantt/internal/utils"
	"github.com/socialchef/recipe-gantt/internal/validation"
	"github.com/socialchef/recipe-gantt/internal/worker"
)

// maxBatchPrompts caps the urls accepted by one /api/prompt call.
const maxBatchPrompts = 20

// Pipeline is the part of pipeline.Processor the handlers use.
type Pipeline interface {
	Run(ctx context.Context, url string) (*pipeline.Result, error)
	BuildPrompt(ctx context.Context, url string) (*pipeline.Result, error)
}

// JobStore is the part of worker.JobStore the handlers use.
type JobStore interface {
	Create(ctx context.Context, id, url string) (*worker.Job, error)
	Get(ctx context.Context, id string) (*worker.Job, error)
}

type Server struct {
	pipeline Pipeline
	queue    worker.Enqueuer
	jobs     JobStore
}

// NewServer builds the handlers. queue and jobs may both be nil, in which
// case the job endpoints answer 503.
func NewServer(p Pipeline, queue worker.Enqueuer, jobs JobStore) *Server {
	return &Server{
		pipeline: p,
		queue:    queue,
		jobs:     jobs,
	}
}

// Routes registers the API endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/gantt", s.HandleGenerate)
	r.Post("/api/prompt", s.HandlePrompt)
	r.Post("/api/jobs", s.HandleEnqueue)
	r.Get("/api/jobs/{id}", s.HandleJobStatus)
}

type GanttRequest struct {
	URL string `json:"url"`
}

type RowResponse struct {
	Ingredient string   `json:"ingredient"`
	Cells      []string `json:"cells"`
	Uses       []string `json:"uses"`
}

type TableResponse struct {
	Steps []string      `json:"steps"`
	Rows  []RowResponse `json:"rows"`
}

type GanttResponse struct {
	RunID      string            `json:"run_id"`
	URL        string            `json:"url"`
	Title      string            `json:"title,omitempty"`
	Recipe     recipe.Normalized `json:"recipe"`
	TSV        string            `json:"tsv"`
	Table      *TableResponse    `json:"table,omitempty"`
	Warnings   []string          `json:"warnings"`
	ParseError string            `json:"parse_error,omitempty"`
}

func newTableResponse(t *gantt.Table) *TableResponse {
	resp := &TableResponse{Steps: t.Steps, Rows: make([]RowResponse, len(t.Rows))}
	for i, row := range t.Rows {
		resp.Rows[i] = RowResponse{
			Ingredient: row.Ingredient,
			Cells:      t.Cells(row, gantt.RenderOptions{Glyph: gantt.DefaultMarker}),
			Uses:       t.Uses(row.Ingredient),
		}
	}
	return resp
}

// HandleGenerate runs the whole pipeline synchronously. Malformed model
// output is returned with a 502 so the raw text is not lost.
func (s *Server) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	url, ok := decodeURL(w, r)
	if !ok {
		return
	}

	res, err := s.pipeline.Run(r.Context(), url)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := GanttResponse{
		RunID:    res.RunID,
		URL:      res.URL,
		Title:    res.Title,
		Recipe:   res.Recipe,
		TSV:      res.Output,
		Warnings: []string{},
	}
	if res.Validation.Confidence != "" && res.Validation.Confidence != validation.ConfidenceHigh {
		resp.Warnings = append(resp.Warnings, res.Validation.Reason)
	}

	table, err := pipeline.Parse(r.Context(), res.Output)
	if err != nil {
		slog.WarnContext(r.Context(), "Model output did not parse", "run_id", res.RunID, "error", err)
		resp.ParseError = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	resp.Table = newTableResponse(table)
	resp.Warnings = append(resp.Warnings, validation.CheckTable(res.Recipe, table)...)
	writeJSON(w, http.StatusOK, resp)
}

type PromptRequest struct {
	URL  string   `json:"url,omitempty"`
	URLs []string `json:"urls,omitempty"`
}

type PromptResponse struct {
	RunID  string              `json:"run_id,omitempty"`
	URL    string              `json:"url"`
	Prompt string              `json:"prompt,omitempty"`
	Recipe *recipe.Normalized  `json:"recipe,omitempty"`
	Error  *apperrors.AppError `json:"error,omitempty"`
}

type BatchPromptResponse struct {
	Prompts []PromptResponse `json:"prompts"`
}

// HandlePrompt builds model prompts without running inference. A single url
// returns one prompt; a urls list is scraped concurrently and reports
// per-url errors inline.
func (s *Server) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.NewValidationError("Invalid request body", "INVALID_BODY", ""))
		return
	}

	if len(req.URLs) == 0 {
		url := strings.TrimSpace(req.URL)
		if url == "" {
			writeError(w, r, errURLRequired)
			return
		}
		res, err := s.pipeline.BuildPrompt(r.Context(), url)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, promptResponse(res))
		return
	}

	if len(req.URLs) > maxBatchPrompts {
		writeError(w, r, apperrors.NewValidationError("Too many urls", "TOO_MANY_URLS", "Send at most 20 urls per request."))
		return
	}

	results, errs := utils.MapParallel(r.Context(), req.URLs, 4, func(ctx context.Context, url string) (*pipeline.Result, error) {
		return s.pipeline.BuildPrompt(ctx, strings.TrimSpace(url))
	})

	resp := BatchPromptResponse{Prompts: make([]PromptResponse, len(req.URLs))}
	for i, url := range req.URLs {
		if errs[i] != nil {
			resp.Prompts[i] = PromptResponse{URL: url, Error: toAppError(errs[i])}
			continue
		}
		resp.Prompts[i] = promptResponse(results[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func promptResponse(res *pipeline.Result) PromptResponse {
	return PromptResponse{
		RunID:  res.RunID,
		URL:    res.URL,
		Prompt: res.Prompt,
		Recipe: &res.Recipe,
	}
}

type EnqueueResponse struct {
	JobID  string `json:"job_id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// HandleEnqueue queues a generation for cmd/worker and returns at once.
func (s *Server) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil || s.jobs == nil {
		writeError(w, r, errQueueDisabled)
		return
	}

	url, ok := decodeURL(w, r)
	if !ok {
		return
	}

	jobID := uuid.New().String()
	if _, err := s.jobs.Create(r.Context(), jobID, url); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create job", "error", err)
		http.Error(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	task, err := worker.NewGenerateGanttTask(worker.GenerateGanttPayload{JobID: jobID, URL: url})
	if err != nil {
		http.Error(w, "Failed to create task", http.StatusInternalServerError)
		return
	}

	if _, err := s.queue.EnqueueContext(r.Context(), task); err != nil {
		slog.ErrorContext(r.Context(), "Failed to enqueue task", "job_id", jobID, "error", err)
		http.Error(w, "Failed to enqueue task", http.StatusInternalServerError)
		return
	}

	clientID, _ := middleware.GetClientID(r.Context())
	slog.InfoContext(r.Context(), "Gantt job queued", "job_id", jobID, "url", url, "client_id", clientID)

	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		JobID:  jobID,
		URL:    url,
		Status: worker.StatusQueued,
	})
}

func (s *Server) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, r, errQueueDisabled)
		return
	}

	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		http.Error(w, "job id is required", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	if errors.Is(err, worker.ErrJobNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read job", "job_id", jobID, "error", err)
		http.Error(w, "Failed to read job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
