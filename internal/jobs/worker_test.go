package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/require"
)

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestWorker_Drain(t *testing.T) {
	ctx := context.Background()
	cfg := Config{MaxAttempts: 3, VisibilityTimeout: time.Minute}

	tests := []struct {
		name      string
		handler   func(calls *atomic.Int32) Handler
		wantCalls int32
		wantDead  bool
	}{
		{
			name: "success",
			handler: func(calls *atomic.Int32) Handler {
				return func(context.Context, Job) error { calls.Add(1); return nil }
			},
			wantCalls: 1,
		},
		{
			name: "transient failure is retried",
			handler: func(calls *atomic.Int32) Handler {
				return func(context.Context, Job) error {
					if calls.Add(1) < 3 {
						return errors.New("smtp timeout")
					}
					return nil
				}
			},
			wantCalls: 3,
		},
		{
			name: "persistent failure exhausts attempts",
			handler: func(calls *atomic.Int32) Handler {
				return func(context.Context, Job) error { calls.Add(1); return errors.New("smtp down") }
			},
			wantCalls: 3,
			wantDead:  true,
		},
		{
			name: "permanent failure is not retried",
			handler: func(calls *atomic.Int32) Handler {
				return func(context.Context, Job) error {
					calls.Add(1)
					return backoff.Permanent(errors.New("task deleted"))
				}
			},
			wantCalls: 1,
			wantDead:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			q := NewMemoryQueue("test")
			require.NoError(t, q.Enqueue(ctx, newJob(t, KindTaskCreated, TaskCreated{TaskID: 1})))

			w := NewWorker(q, map[Kind]Handler{KindTaskCreated: tc.handler(&calls)}, cfg, WithBackOff(fastBackOff))
			n, err := w.Drain(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, n)
			require.Equal(t, tc.wantCalls, calls.Load())
			require.Empty(t, q.Pending())
			if tc.wantDead {
				require.Len(t, q.Failed(), 1)
			} else {
				require.Empty(t, q.Failed())
			}
		})
	}
}

func TestWorker_UnknownKindFails(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")
	require.NoError(t, q.Enqueue(ctx, newJob(t, KindScreenshot, Screenshot{TaskID: 1})))

	w := NewWorker(q, map[Kind]Handler{}, Config{}, WithBackOff(fastBackOff))
	_, err := w.Drain(ctx)
	require.NoError(t, err)

	failed := q.Failed()
	require.Len(t, failed, 1)
	require.Contains(t, failed[0].LastError, "no handler")
}

func TestWorker_RunProcessesUntilCanceled(t *testing.T) {
	q := NewMemoryQueue("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	handler := func(context.Context, Job) error {
		if calls.Add(1) == 5 {
			cancel()
		}
		return nil
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, newJob(t, KindCommentCreated, CommentCreated{CommentID: int64(i)})))
	}

	w := NewWorker(q, map[Kind]Handler{KindCommentCreated: handler},
		Config{Concurrency: 2, PollInterval: 5 * time.Millisecond}, WithBackOff(fastBackOff))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.Equal(t, int32(5), calls.Load())
	require.Empty(t, q.Pending())
}

func TestJanitor_PurgeOnce(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue("test")
	require.NoError(t, q.Enqueue(ctx, newJob(t, KindTaskCreated, TaskCreated{TaskID: 1})))
	claimed, err := q.Dequeue(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, claimed[0]))

	j, err := NewJanitor(q, -time.Hour)
	require.NoError(t, err)
	defer func() { _ = j.Shutdown() }()

	n, err := j.PurgeOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
