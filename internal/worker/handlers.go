package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	apperrors "github.com/socialchef/recipe-gantt/internal/errors"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
	"github.com/socialchef/recipe-gantt/internal/services/storage"
	"github.com/socialchef/recipe-gantt/internal/utils"
	"github.com/socialchef/recipe-gantt/internal/validation"
)

// Runner runs the recipe pipeline once.
type Runner interface {
	Run(ctx context.Context, url string) (*pipeline.Result, error)
}

type GanttProcessor struct {
	runner       Runner
	jobs         JobRecorder
	sink         storage.Sink
	outputPrefix string
	metrics      *WorkerMetrics
}

// NewGanttProcessor wires the task handler. sink and outputPrefix are
// optional; without them raw output is only kept on the job.
func NewGanttProcessor(runner Runner, jobs JobRecorder, sink storage.Sink, outputPrefix string, m *WorkerMetrics) *GanttProcessor {
	return &GanttProcessor{
		runner:       runner,
		jobs:         jobs,
		sink:         sink,
		outputPrefix: outputPrefix,
		metrics:      m,
	}
}

// Progress mirrors in-flight pipeline stages onto the job. Register it with
// pipeline.Processor.OnProgress. Terminal stages are written by the handler.
func (p *GanttProcessor) Progress(ctx context.Context, update pipeline.ProgressUpdate) {
	if update.Stage == pipeline.StageCompleted || update.Stage == pipeline.StageFailed {
		return
	}
	slog.InfoContext(ctx, "Progress update", "job_id", update.RunID, "status", update.Stage, "message", update.Message)

	err := p.jobs.Update(ctx, update.RunID, func(j *Job) {
		j.Status = string(update.Stage)
		j.ProgressStep = update.Message
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to record progress", "job_id", update.RunID, "error", err)
	}
}

// Destination returns where a job's raw output is written, or "" when no
// output prefix is configured.
func (p *GanttProcessor) Destination(jobID string) string {
	if p.sink == nil || p.outputPrefix == "" {
		return ""
	}
	prefix := p.outputPrefix
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + jobID + ".tsv"
}

func (p *GanttProcessor) HandleGenerateGantt(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	payload, err := decodeGanttPayload(t)
	if err != nil {
		return err
	}

	ctx = pipeline.WithRunID(ctx, payload.JobID)
	slog.InfoContext(ctx, "Processing gantt job", "job_id", payload.JobID, "url", payload.URL)

	res, err := p.runner.Run(ctx, payload.URL)
	if err != nil {
		p.markFailed(ctx, payload.JobID, err)
		p.metrics.RecordJob(ctx, TypeGenerateGantt, "failed", time.Since(start).Seconds())
		return fmt.Errorf("gantt job %s: %w", payload.JobID, err)
	}

	// Raw output is persisted whether or not it parses.
	dest := p.Destination(payload.JobID)
	var warnings []string
	var parseError string
	errs := utils.RunParallel(ctx,
		func(ctx context.Context) error {
			if dest == "" {
				return nil
			}
			return p.sink.Write(ctx, dest, []byte(res.Output))
		},
		func(ctx context.Context) error {
			table, err := pipeline.Parse(ctx, res.Output)
			if err != nil {
				parseError = err.Error()
				return nil
			}
			warnings = validation.CheckTable(res.Recipe, table)
			return nil
		},
	)
	if len(errs) > 0 {
		err := errs[0]
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewStorageError("Failed to write gantt chart", "OUTPUT_WRITE_ERROR", err)
		}
		p.markFailed(ctx, payload.JobID, err)
		p.metrics.RecordJob(ctx, TypeGenerateGantt, "failed", time.Since(start).Seconds())
		return fmt.Errorf("gantt job %s: %w", payload.JobID, err)
	}

	err = p.jobs.Update(ctx, payload.JobID, func(j *Job) {
		j.Status = StatusCompleted
		j.ProgressStep = "Gantt chart generated"
		j.Title = res.Title
		j.Output = res.Output
		j.Destination = dest
		j.ParseError = parseError
		j.Warnings = warnings
	})
	if err != nil {
		return fmt.Errorf("failed to record result for job %s: %w", payload.JobID, err)
	}

	p.metrics.RecordJob(ctx, TypeGenerateGantt, "success", time.Since(start).Seconds())
	slog.InfoContext(ctx, "Gantt job completed",
		"job_id", payload.JobID,
		"destination", dest,
		"parse_error", parseError != "",
		"duration", time.Since(start))
	return nil
}

func (p *GanttProcessor) markFailed(ctx context.Context, jobID string, cause error) {
	slog.ErrorContext(ctx, "Job failed", "job_id", jobID, "error", cause)

	code := "INTERNAL_ERROR"
	message := cause.Error()
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		code = appErr.Code()
		message = appErr.Message
		if s := appErr.RecoverySuggestion(); s != "" {
			message += " " + s
		}
	}

	err := p.jobs.Update(ctx, jobID, func(j *Job) {
		j.Status = StatusFailed
		j.ProgressStep = "Failed"
		j.Error = message
		j.ErrorCode = code
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to record job failure", "job_id", jobID, "error", err)
	}
}
