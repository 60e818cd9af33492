package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"collabsauce/api/internal/app"
)

type ServeCmd struct {
	Worker bool `help:"Also run the job worker in this process. Always on for the memory queue." default:"false" env:"SERVE_WITH_WORKER"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	ctx = log.WithContext(ctx)
	ctx, stop := signalContext(ctx)
	defer stop()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := configureHTTPServer(cfg.Addr, app.NewHTTPServer(rt.service, rt.registry).Handler())
	// Jobs enqueued on the memory queue are only visible to this process.
	inProcess := c.Worker || cfg.QueueBackend == "memory"

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("version", globals.Version).Str("addr", cfg.Addr).Msg("collabsauce api listening")
		if err := server.ListenAndServe(); err != nil && !isServerClosed(err) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if inProcess {
		g.Go(func() error {
			return rt.runWorker(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zerolog.Ctx(gctx).Error().Err(err).Msg("shutdown")
		}
		return nil
	})
	return g.Wait()
}
