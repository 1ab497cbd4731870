package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// NewServer creates the Asynq server that runs generation tasks. A local
// model saturates the machine, so concurrency usually stays at 1.
func NewServer(redisURL string, concurrency int) (*asynq.Server, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	return asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				slog.ErrorContext(ctx, "Task failed", "task_type", t.Type(), "task_id", taskID, "error", err)
			}),
		},
	), nil
}

// NewServeMux registers the gantt handlers behind the Sentry and tracing middleware.
func NewServeMux(p *GanttProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(SentryMiddleware)
	mux.Use(OTelMiddleware)
	mux.HandleFunc(TypeGenerateGantt, p.HandleGenerateGantt)
	return mux
}
