package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// Janitor periodically purges finished jobs older than the retention window.
type Janitor struct {
	scheduler gocron.Scheduler
	queue     Queue
	retention time.Duration
}

func NewJanitor(queue Queue, retention time.Duration) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Janitor{scheduler: scheduler, queue: queue, retention: retention}, nil
}

// Start schedules the purge every interval and starts the scheduler. The
// context supplies the logger and bounds each run.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) error {
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := j.PurgeOnce(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("purge finished jobs")
			}
		}),
		gocron.WithName("purge_finished_jobs"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}
	j.scheduler.Start()
	return nil
}

func (j *Janitor) PurgeOnce(ctx context.Context) (int, error) {
	n, err := j.queue.Purge(ctx, time.Now().Add(-j.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zerolog.Ctx(ctx).Info().Int("purged", n).Msg("purged finished jobs")
	}
	return n, nil
}

func (j *Janitor) Shutdown() error {
	return j.scheduler.Shutdown()
}
