package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/socialchef/recipe-gantt/internal/pipeline"
)

// Job statuses. The in-flight ones mirror the pipeline stages.
const (
	StatusQueued     = "queued"
	StatusScraping   = string(pipeline.StageScraping)
	StatusGenerating = string(pipeline.StageGenerating)
	StatusCompleted  = string(pipeline.StageCompleted)
	StatusFailed     = string(pipeline.StageFailed)
)

// DefaultJobTTL is how long finished jobs stay readable.
const DefaultJobTTL = 24 * time.Hour

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrStoreDisabled = errors.New("job store has no Redis client")
)

// Job is the state of one queued generation as seen by API clients.
type Job struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Status       string    `json:"status"`
	ProgressStep string    `json:"progress_step,omitempty"`
	Title        string    `json:"title,omitempty"`
	Output       string    `json:"tsv,omitempty"`
	Destination  string    `json:"destination,omitempty"`
	ParseError   string    `json:"parse_error,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobRecorder is what the task handler needs from job storage.
type JobRecorder interface {
	Update(ctx context.Context, id string, fn func(*Job)) error
}

// JobStore keeps job state in Redis as JSON, one key per job.
type JobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewJobStore(client *redis.Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStore{
		client: client,
		prefix: "recipe-gantt:job:",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *JobStore) Key(id string) string {
	return s.prefix + id
}

// Create records a new queued job.
func (s *JobStore) Create(ctx context.Context, id, url string) (*Job, error) {
	now := s.now().UTC()
	job := &Job{
		ID:           id,
		URL:          url,
		Status:       StatusQueued,
		ProgressStep: "Waiting for a worker",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns ErrJobNotFound for unknown or expired ids.
func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	if s == nil || s.client == nil {
		return nil, ErrStoreDisabled
	}

	data, err := s.client.Get(ctx, s.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update applies fn to the stored job and writes it back. A job has a single
// worker, so read-modify-write needs no locking.
func (s *JobStore) Update(ctx context.Context, id string, fn func(*Job)) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(job)
	job.UpdatedAt = s.now().UTC()
	return s.save(ctx, job)
}

func (s *JobStore) save(ctx context.Context, job *Job) error {
	if s == nil || s.client == nil {
		return ErrStoreDisabled
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(job.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write job %s: %w", job.ID, err)
	}
	return nil
}
