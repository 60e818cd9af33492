package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"collabsauce/api/internal/app"
	"collabsauce/api/internal/config"
	"collabsauce/api/internal/email"
	"collabsauce/api/internal/jobs"
	"collabsauce/api/internal/logger"
	"collabsauce/api/internal/metrics"
	"collabsauce/api/internal/notify"
	"collabsauce/api/internal/objectstore"
	"collabsauce/api/internal/screenshot"
	"collabsauce/api/internal/store"
	"collabsauce/api/internal/store/memory"
	"collabsauce/api/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

// runtime holds the components shared by the serve and worker commands.
type runtime struct {
	cfg      config.Config
	store    store.Store
	pool     *pgxpool.Pool
	queue    jobs.Queue
	objects  objectstore.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	service  *app.Service
	closers  []func()
}

func setup(globals *Globals) (config.Config, zerolog.Logger, error) {
	log := logger.Setup(globals.Debug)
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, log, fmt.Errorf("load config: %w", err)
	}
	return cfg, log, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, registry: prometheus.NewRegistry()}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.metrics = metrics.New(rt.registry)

	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.openQueue(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.openObjects(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	service, err := app.New(cfg, app.Deps{
		Store:   rt.store,
		Queue:   rt.queue,
		Objects: rt.objects,
		Metrics: rt.metrics,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.service = service
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	if rt.cfg.StoreType == "memory" {
		zerolog.Ctx(ctx).Warn().Msg("using in-memory store, data is lost on restart")
		rt.store = memory.New()
		return nil
	}

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{
		ConnString: rt.cfg.DatabaseURL,
		MaxConns:   rt.cfg.DBMaxConns,
		MinConns:   rt.cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	rt.pool = pool
	rt.closers = append(rt.closers, pool.Close)

	if rt.cfg.AutoMigrate {
		if err := postgres.ApplyMigrations(ctx, pool); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	rt.store = postgres.NewStore(pool)
	return nil
}

func (rt *runtime) openQueue(ctx context.Context) error {
	switch rt.cfg.QueueBackend {
	case "postgres":
		rt.queue = postgres.NewJobQueue(rt.pool, rt.cfg.QueueName)
	case "redis":
		queue, err := jobs.NewRedisQueue(rt.cfg.RedisURL, rt.cfg.QueueName)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		rt.closers = append(rt.closers, func() {
			if err := queue.Close(); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("close redis")
			}
		})
		if err := queue.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		rt.queue = queue
	default:
		rt.queue = jobs.NewMemoryQueue(rt.cfg.QueueName)
	}
	zerolog.Ctx(ctx).Info().Str("backend", rt.cfg.QueueBackend).Str("queue", rt.cfg.QueueName).Msg("job queue ready")
	return nil
}

func (rt *runtime) openObjects(ctx context.Context) error {
	if !rt.cfg.S3Configured() {
		zerolog.Ctx(ctx).Warn().Msg("S3 not configured, screenshots are kept in memory")
		rt.objects = objectstore.NewMemory(rt.cfg.AppBaseURL + "/objects")
		return nil
	}
	s3, err := objectstore.NewS3(objectstore.Config{
		Endpoint:  rt.cfg.S3Endpoint,
		Region:    rt.cfg.S3Region,
		Bucket:    rt.cfg.S3Bucket,
		AccessKey: rt.cfg.S3AccessKey,
		SecretKey: rt.cfg.S3SecretKey,
		UseSSL:    rt.cfg.S3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	if err := s3.Ping(ctx); err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	rt.objects = s3
	return nil
}

// worker builds the job worker with notification and screenshot handlers.
func (rt *runtime) worker(ctx context.Context) *jobs.Worker {
	var sender notify.Sender = email.LogSender{}
	if rt.cfg.SMTPConfigured() {
		sender = email.NewService(email.Config{
			Host:     rt.cfg.SMTPHost,
			Port:     rt.cfg.SMTPPort,
			Username: rt.cfg.SMTPUsername,
			Password: rt.cfg.SMTPPassword,
			From:     rt.cfg.SMTPFrom,
			FromName: rt.cfg.SMTPFromName,
		})
	} else {
		zerolog.Ctx(ctx).Warn().Msg("SMTP not configured, notifications are logged only")
	}

	fanout := notify.New(rt.store, sender, rt.cfg.AppBaseURL, rt.metrics)
	renderer := screenshot.NewChrome(rt.cfg.ScreenshotTimeout)
	return jobs.NewWorker(rt.queue, rt.service.JobHandlers(fanout, renderer), jobs.Config{
		Queue:             rt.cfg.QueueName,
		Concurrency:       rt.cfg.WorkerConcurrency,
		PollInterval:      rt.cfg.PollInterval,
		VisibilityTimeout: rt.cfg.VisibilityTimeout,
		MaxAttempts:       rt.cfg.MaxAttempts,
		Retention:         rt.cfg.JobRetention,
	}, jobs.WithMetrics(rt.metrics))
}

// runWorker runs the worker and the finished-job janitor until ctx is done.
func (rt *runtime) runWorker(ctx context.Context) error {
	janitor, err := jobs.NewJanitor(rt.queue, rt.cfg.JobRetention)
	if err != nil {
		return err
	}
	if err := janitor.Start(ctx, time.Hour); err != nil {
		return err
	}
	defer func() {
		if err := janitor.Shutdown(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("janitor shutdown")
		}
	}()
	return rt.worker(ctx).Run(ctx)
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 * 1024,
	}
}

func isServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
