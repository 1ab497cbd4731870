package worker

import (
	"context"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
)

// SentryMiddleware reports failed tasks to Sentry, tagged with the job and
// recipe they were working on.
func SentryMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		taskID, _ := asynq.GetTaskID(ctx)
		queueName, _ := asynq.GetQueueName(ctx)
		retryCount, _ := asynq.GetRetryCount(ctx)

		hub := sentry.CurrentHub().Clone()
		scope := hub.Scope()
		scope.SetTag("task_type", t.Type())
		scope.SetTag("task_id", taskID)
		scope.SetTag("queue", queueName)
		scope.SetTag("retry_count", strconv.Itoa(retryCount))
		if payload, err := decodeGanttPayload(t); err == nil {
			scope.SetTag("run_id", payload.JobID)
			scope.SetTag("recipe_url", payload.URL)
		}

		ctx = sentry.SetHubOnContext(ctx, hub)

		err := h.ProcessTask(ctx, t)
		if err != nil {
			hub.CaptureException(err)
		}

		return err
	})
}
