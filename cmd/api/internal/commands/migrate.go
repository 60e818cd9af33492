package commands

import (
	"context"
	"errors"
	"fmt"

	"collabsauce/api/internal/store/postgres"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, log, err := setup(globals)
	if err != nil {
		return err
	}
	if cfg.StoreType != "postgres" {
		return errors.New("migrations need STORE_TYPE=postgres")
	}
	ctx = log.WithContext(ctx)

	pool, err := postgres.NewPool(ctx, &postgres.PoolConfig{
		ConnString: cfg.DatabaseURL,
		MaxConns:   cfg.DBMaxConns,
		MinConns:   cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.ApplyMigrations(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info().Msg("migrations applied")
	return nil
}
