package jobs

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryState int

const (
	memoryScheduled memoryState = iota
	memoryRunning
	memoryCompleted
	memoryFailed
)

type memoryEntry struct {
	job          Job
	state        memoryState
	visibleAfter time.Time
	finishedAt   time.Time
}

// MemoryQueue is an in-process Queue for development and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	name    string
	entries []*memoryEntry
	now     func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(name string) *MemoryQueue {
	return &MemoryQueue{name: name, now: time.Now}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobs ...Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range jobs {
		job.Queue = q.name
		q.entries = append(q.entries, &memoryEntry{job: job, visibleAfter: q.now()})
	}
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var claimed []Job
	for _, e := range q.entries {
		if len(claimed) >= max {
			break
		}
		if e.state != memoryScheduled && e.state != memoryRunning {
			continue
		}
		if e.visibleAfter.After(now) {
			continue
		}
		e.state = memoryRunning
		e.visibleAfter = now.Add(visibility)
		e.job.Attempts++
		e.job.Receipt = uuid.NewString()
		claimed = append(claimed, e.job)
	}
	return claimed, nil
}

func (q *MemoryQueue) Complete(_ context.Context, job Job) error {
	return q.finish(job, memoryCompleted, "")
}

func (q *MemoryQueue) Fail(_ context.Context, job Job, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(job, memoryFailed, msg)
}

func (q *MemoryQueue) finish(job Job, state memoryState, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.job.ID != job.ID {
			continue
		}
		if e.state != memoryRunning || e.job.Receipt != job.Receipt {
			return ErrNoJob
		}
		e.state = state
		e.finishedAt = q.now()
		e.job.LastError = lastError
		return nil
	}
	return ErrNoJob
}

func (q *MemoryQueue) Purge(_ context.Context, olderThan time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.entries)
	q.entries = slices.DeleteFunc(q.entries, func(e *memoryEntry) bool {
		return (e.state == memoryCompleted || e.state == memoryFailed) && e.finishedAt.Before(olderThan)
	})
	return before - len(q.entries), nil
}

// Pending returns a snapshot of jobs that have not completed or failed, in
// enqueue order.
func (q *MemoryQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Job
	for _, e := range q.entries {
		if e.state == memoryScheduled || e.state == memoryRunning {
			out = append(out, e.job)
		}
	}
	return out
}

// Failed returns a snapshot of dead jobs.
func (q *MemoryQueue) Failed() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Job
	for _, e := range q.entries {
		if e.state == memoryFailed {
			out = append(out, e.job)
		}
	}
	return out
}
