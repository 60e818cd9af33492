package commands

import (
	"context"
	"errors"
)

type WorkerCmd struct{}

func (c *WorkerCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	if cfg.QueueBackend == "memory" {
		return errors.New("a standalone worker needs QUEUE_BACKEND=postgres or redis")
	}
	ctx = log.WithContext(ctx)
	ctx, stop := signalContext(ctx)
	defer stop()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info().Str("version", globals.Version).Msg("collabsauce worker starting")
	return rt.runWorker(ctx)
}
