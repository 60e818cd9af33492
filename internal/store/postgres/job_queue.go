package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"collabsauce/api/internal/jobs"
)

// JobQueue is a durable jobs.Queue backed by the jobs table. Workers claim
// rows with FOR UPDATE SKIP LOCKED so concurrent workers never share a job.
type JobQueue struct {
	pool *pgxpool.Pool
	name string
}

var _ jobs.Queue = (*JobQueue)(nil)

func NewJobQueue(pool *pgxpool.Pool, name string) *JobQueue {
	return &JobQueue{pool: pool, name: name}
}

func (q *JobQueue) Enqueue(ctx context.Context, batch ...jobs.Job) error {
	if len(batch) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, job := range batch {
		b.Queue(`
			INSERT INTO jobs (id, queue, kind, payload, created_at, updated_at)
			VALUES ($1::text::uuid, $2, $3, $4, $5, $5)
			ON CONFLICT (id) DO NOTHING
		`, job.ID, q.name, string(job.Kind), []byte(job.Payload), job.CreatedAt)
	}
	if err := q.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("enqueue jobs: %w", mapPostgresError(err))
	}
	log.Debug().Str("queue", q.name).Int("count", len(batch)).Msg("enqueued jobs")
	return nil
}

func (q *JobQueue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]jobs.Job, error) {
	rows, err := q.pool.Query(ctx, `
		WITH claimable AS (
			SELECT id
			FROM jobs
			WHERE queue = $1
			  AND state IN ('scheduled', 'running')
			  AND visible_after <= NOW()
			ORDER BY created_at ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET state = 'running',
			attempts = jobs.attempts + 1,
			visible_after = NOW() + $3 * INTERVAL '1 millisecond',
			receipt = gen_random_uuid(),
			updated_at = NOW()
		FROM claimable
		WHERE jobs.id = claimable.id
		RETURNING jobs.id::text, jobs.queue, jobs.kind, jobs.payload, jobs.attempts,
			jobs.receipt::text, jobs.last_error, jobs.created_at
	`, q.name, max, visibility.Milliseconds())

	claimed, err := collect(rows, err, func(row scanner) (jobs.Job, error) {
		var (
			job     jobs.Job
			kind    string
			payload []byte
		)
		err := row.Scan(&job.ID, &job.Queue, &kind, &payload, &job.Attempts, &job.Receipt, &job.LastError, &job.CreatedAt)
		job.Kind = jobs.Kind(kind)
		job.Payload = payload
		return job, err
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue jobs: %w", err)
	}
	// UPDATE ... RETURNING does not preserve the CTE order.
	slices.SortStableFunc(claimed, func(a, b jobs.Job) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return claimed, nil
}

func (q *JobQueue) finish(ctx context.Context, job jobs.Job, state, lastError string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = $3, last_error = $4, receipt = NULL, updated_at = NOW()
		WHERE id = $1::text::uuid AND receipt = $2::text::uuid AND state = 'running'
	`, job.ID, job.Receipt, state, lastError)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, mapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrNoJob
	}
	return nil
}

func (q *JobQueue) Complete(ctx context.Context, job jobs.Job) error {
	return q.finish(ctx, job, "completed", "")
}

func (q *JobQueue) Fail(ctx context.Context, job jobs.Job, cause error) error {
	msg := "failed"
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(ctx, job, "failed", msg)
}

func (q *JobQueue) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM jobs WHERE queue = $1 AND state IN ('completed', 'failed') AND updated_at < $2
	`, q.name, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", mapPostgresError(err))
	}
	return int(tag.RowsAffected()), nil
}
