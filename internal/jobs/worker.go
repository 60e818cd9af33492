package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"collabsauce/api/internal/metrics"
)

// Handler processes one job. Returning an error wrapped with
// backoff.Permanent fails the job without further retries.
type Handler func(ctx context.Context, job Job) error

type Worker struct {
	queue      Queue
	handlers   map[Kind]Handler
	cfg        Config
	metrics    *metrics.Metrics
	newBackOff func() backoff.BackOff
}

type WorkerOption func(*Worker)

// WithBackOff replaces the exponential backoff used between handler retries.
func WithBackOff(fn func() backoff.BackOff) WorkerOption {
	return func(w *Worker) { w.newBackOff = fn }
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(queue Queue, handlers map[Kind]Handler, cfg Config, opts ...WorkerOption) *Worker {
	cfg.ApplyDefaults()
	w := &Worker{
		queue:    queue,
		handlers: handlers,
		cfg:      cfg,
		metrics:  metrics.NewNop(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the queue until ctx is canceled, processing up to
// Config.Concurrency jobs at a time. In-flight jobs finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Int("concurrency", w.cfg.Concurrency).
		Dur("poll_interval", w.cfg.PollInterval).
		Msg("worker started")

	slots := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		free := cap(slots) - len(slots)
		if free > 0 {
			claimed, err := w.queue.Dequeue(ctx, free, w.cfg.VisibilityTimeout)
			if err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("dequeue failed")
			}
			for _, job := range claimed {
				slots <- struct{}{}
				wg.Add(1)
				go func(job Job) {
					defer wg.Done()
					defer func() { <-slots }()
					// Detached so a shutdown does not abandon a job mid-handler.
					w.process(context.WithoutCancel(ctx), job)
				}(job)
			}
			if len(claimed) == free {
				continue
			}
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain processes visible jobs one at a time until the queue has none left.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		claimed, err := w.queue.Dequeue(ctx, 1, w.cfg.VisibilityTimeout)
		if err != nil {
			return processed, fmt.Errorf("dequeue: %w", err)
		}
		if len(claimed) == 0 {
			return processed, nil
		}
		w.process(ctx, claimed[0])
		processed++
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	logger := zerolog.Ctx(ctx).With().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("attempts", job.Attempts).
		Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()

	err := w.handle(ctx, job)
	w.metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())

	if err == nil {
		w.metrics.JobsProcessed.WithLabelValues(string(job.Kind), "completed").Inc()
		if err := w.queue.Complete(ctx, job); err != nil {
			logger.Warn().Err(err).Msg("complete job")
		}
		logger.Debug().Msg("job completed")
		return
	}

	w.metrics.JobsProcessed.WithLabelValues(string(job.Kind), "failed").Inc()
	logger.Error().Err(err).Msg("job failed")
	if err := w.queue.Fail(ctx, job, err); err != nil {
		logger.Warn().Err(err).Msg("fail job")
	}
}

func (w *Worker) handle(ctx context.Context, job Job) error {
	if job.Attempts > w.cfg.MaxAttempts {
		return fmt.Errorf("max attempts exceeded (%d)", w.cfg.MaxAttempts)
	}
	handler, ok := w.handlers[job.Kind]
	if !ok {
		return fmt.Errorf("no handler for %q", job.Kind)
	}

	tries := uint(w.cfg.MaxAttempts - job.Attempts + 1)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, handler(ctx, job)
	},
		backoff.WithBackOff(w.newBackOff()),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(w.cfg.VisibilityTimeout/2),
		backoff.WithNotify(func(err error, next time.Duration) {
			zerolog.Ctx(ctx).Warn().Err(err).Dur("retry_in", next).Msg("job handler failed, retrying")
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}
