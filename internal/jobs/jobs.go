// Package jobs defines background work items and the queues and worker that
// deliver them at least once.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindTaskCreated     Kind = "task.created"
	KindCommentCreated  Kind = "comment.created"
	KindAssigneeChanged Kind = "task.assignee_changed"
	KindColumnChanged   Kind = "task.column_changed"
	KindInviteCreated   Kind = "invite.created"
	KindInviteCanceled  Kind = "invite.canceled"
	KindScreenshot      Kind = "task.screenshot"
	KindExtensionUpload Kind = "task.extension_upload"
)

// ErrNoJob is returned by Complete and Fail when the receipt no longer
// matches, usually because the visibility timeout elapsed and another worker
// claimed the job.
var ErrNoJob = errors.New("job not found or receipt expired")

type Job struct {
	ID        string
	Queue     string
	Kind      Kind
	Payload   json.RawMessage
	Attempts  int
	Receipt   string
	LastError string
	CreatedAt time.Time
}

// New builds a job with a time-ordered id. The queue name is assigned on
// enqueue.
func New(kind Kind, payload any) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Job{}, fmt.Errorf("job id: %w", err)
	}
	return Job{ID: id.String(), Kind: kind, Payload: raw, CreatedAt: time.Now().UTC()}, nil
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// Queue is an at-least-once job queue. Dequeued jobs stay invisible for the
// visibility timeout and reappear unless completed or failed.
type Queue interface {
	Enqueue(ctx context.Context, jobs ...Job) error
	Dequeue(ctx context.Context, max int, visibility time.Duration) ([]Job, error)
	Complete(ctx context.Context, job Job) error
	// Fail parks the job as dead with the given cause.
	Fail(ctx context.Context, job Job, cause error) error
	// Purge drops completed and failed jobs older than the cutoff.
	Purge(ctx context.Context, olderThan time.Time) (int, error)
}

// Config is the deployment configuration handed to queues and the worker.
type Config struct {
	Queue             string
	Concurrency       int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	MaxAttempts       int
	Retention         time.Duration
}

func (c *Config) ApplyDefaults() {
	if c.Queue == "" {
		c.Queue = "default"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
}

type TaskCreated struct {
	TaskID int64 `json:"task_id"`
	// ActorID is nil for anonymous widget submissions.
	ActorID *int64 `json:"actor_id,omitempty"`
}

type CommentCreated struct {
	CommentID int64 `json:"comment_id"`
}

type AssigneeChanged struct {
	TaskID     int64 `json:"task_id"`
	AssigneeID int64 `json:"assignee_id"`
	ActorID    int64 `json:"actor_id"`
}

type ColumnChanged struct {
	TaskID       int64 `json:"task_id"`
	PrevColumnID int64 `json:"prev_column_id"`
	NewColumnID  int64 `json:"new_column_id"`
	MoverID      int64 `json:"mover_id"`
}

type InviteEvent struct {
	InviteID int64 `json:"invite_id"`
	ActorID  int64 `json:"actor_id"`
}

type Screenshot struct {
	TaskID     int64 `json:"task_id"`
	TaskHTMLID int64 `json:"task_html_id"`
}

type ExtensionUpload struct {
	TaskID    int64 `json:"task_id"`
	DataURLID int64 `json:"data_url_id"`
}
