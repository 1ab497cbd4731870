package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeGenerateGantt = "gantt:generate"
)

// GenerationTimeout bounds one queued generation, model load included.
const GenerationTimeout = 30 * time.Minute

// GenerateGanttPayload is the payload for gantt generation tasks
type GenerateGanttPayload struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

// NewGenerateGanttTask creates a gantt generation task. Generation is never
// retried, so the task runs at most once.
func NewGenerateGanttTask(payload GenerateGanttPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateGantt, data,
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(0),
		asynq.Timeout(GenerationTimeout),
	), nil
}

func decodeGanttPayload(t *asynq.Task) (GenerateGanttPayload, error) {
	var payload GenerateGanttPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" || payload.URL == "" {
		return payload, fmt.Errorf("payload needs job_id and url: %w", asynq.SkipRetry)
	}
	return payload, nil
}
